package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

type chanNotifier struct {
	ch  chan struct{}
	err error
}

func (n *chanNotifier) Changes(context.Context) (<-chan struct{}, error) {
	return n.ch, n.err
}

type countingRebuild struct {
	changed atomic.Int32
}

func (c *countingRebuild) TriggerRebuild(context.Context, string, bool) (*domain.BuildRecord, error) {
	return nil, nil
}

func (c *countingRebuild) CatalogChanged(context.Context) {
	c.changed.Add(1)
}

func TestWatchCatalog_CoalescesBursts(t *testing.T) {
	n := &chanNotifier{ch: make(chan struct{})}
	rb := &countingRebuild{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- WatchCatalog(ctx, n, rb, 30*time.Millisecond) }()

	for range 5 {
		n.ch <- struct{}{}
	}
	assert.Eventually(t, func() bool { return rb.changed.Load() == 1 }, time.Second, 5*time.Millisecond)

	n.ch <- struct{}{}
	assert.Eventually(t, func() bool { return rb.changed.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchCatalog_NoQuietPeriod(t *testing.T) {
	n := &chanNotifier{ch: make(chan struct{})}
	rb := &countingRebuild{}

	done := make(chan error, 1)
	go func() { done <- WatchCatalog(context.Background(), n, rb, 0) }()

	n.ch <- struct{}{}
	n.ch <- struct{}{}
	close(n.ch)

	require.NoError(t, <-done)
	assert.Equal(t, int32(2), rb.changed.Load())
}

func TestWatchCatalog_FlushesPendingOnClose(t *testing.T) {
	n := &chanNotifier{ch: make(chan struct{}, 1)}
	rb := &countingRebuild{}

	n.ch <- struct{}{}
	close(n.ch)

	require.NoError(t, WatchCatalog(context.Background(), n, rb, time.Hour))
	assert.Equal(t, int32(1), rb.changed.Load())
}

func TestWatchCatalog_NotifierError(t *testing.T) {
	n := &chanNotifier{err: errors.New("listen failed")}

	err := WatchCatalog(context.Background(), n, &countingRebuild{}, time.Second)
	assert.ErrorContains(t, err, "listen failed")
}
