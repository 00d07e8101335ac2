package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/llm"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

const customAnswer = "Réponds en %[1]s.\n%[2]s\nQ: %[3]s\n%[4]s"

func newTestPromptStore(t *testing.T) (*PromptStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "prompts")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)
	return store, dir
}

func writePrompt(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".txt"), []byte(content), 0o600))
}

func TestNewPromptStore_Dir(t *testing.T) {
	store, dir := newTestPromptStore(t)
	assert.Equal(t, dir, store.Dir())

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "constructor must not touch the disk")
}

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	store, err := NewPromptStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DirName, "prompts"), store.Dir())
}

func TestPromptStore_SeedsDirectory(t *testing.T) {
	store, dir := newTestPromptStore(t)

	got, err := store.Load(driven.PromptAnswer)

	require.NoError(t, err)
	assert.Equal(t, llm.DefaultPrompts[driven.PromptAnswer], got)
	for _, f := range []string{"answer.txt", "answer_system.txt", "README.md"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}
}

func TestPromptStore_KeepsUserEdits(t *testing.T) {
	store, dir := newTestPromptStore(t)
	writePrompt(t, dir, driven.PromptAnswer, "\n"+customAnswer+"\n\n")

	got, err := store.Load(driven.PromptAnswer)

	require.NoError(t, err)
	assert.Equal(t, customAnswer, got)
	data, err := os.ReadFile(filepath.Join(dir, "answer.txt"))
	require.NoError(t, err)
	assert.Equal(t, "\n"+customAnswer+"\n\n", string(data))
}

func TestPromptStore_BrokenTemplateFallsBack(t *testing.T) {
	store, dir := newTestPromptStore(t)
	writePrompt(t, dir, driven.PromptAnswer, "Answer %[3]s")
	writePrompt(t, dir, driven.PromptAnswerSystem, "   ")

	answer, err := store.Load(driven.PromptAnswer)
	require.NoError(t, err)
	system, err := store.Load(driven.PromptAnswerSystem)
	require.NoError(t, err)

	assert.Equal(t, llm.DefaultPrompts[driven.PromptAnswer], answer)
	assert.Equal(t, llm.DefaultPrompts[driven.PromptAnswerSystem], system)
}

func TestPromptStore_DeletedFileFallsBack(t *testing.T) {
	store, dir := newTestPromptStore(t)
	_, err := store.Load(driven.PromptAnswerSystem)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "answer_system.txt")))
	store.Reload()

	got, err := store.Load(driven.PromptAnswerSystem)

	require.NoError(t, err)
	assert.Equal(t, llm.DefaultPrompts[driven.PromptAnswerSystem], got)
}

func TestPromptStore_UnknownPrompt(t *testing.T) {
	store, _ := newTestPromptStore(t)

	_, err := store.Load("nonexistent")

	assert.Error(t, err)
}

func TestPromptStore_ReloadPicksUpEdits(t *testing.T) {
	store, dir := newTestPromptStore(t)
	_, err := store.Load(driven.PromptAnswerSystem)
	require.NoError(t, err)

	writePrompt(t, dir, driven.PromptAnswerSystem, "Sois bref.")
	cached, err := store.Load(driven.PromptAnswerSystem)
	require.NoError(t, err)
	assert.Equal(t, llm.DefaultPrompts[driven.PromptAnswerSystem], cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptAnswerSystem)
	require.NoError(t, err)
	assert.Equal(t, "Sois bref.", fresh)
}

func TestPromptStore_UnwritableDirUsesBuiltins(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	store, err := NewPromptStore(filepath.Join(blocker, "prompts"))
	require.NoError(t, err)

	got, err := store.Load(driven.PromptAnswer)

	require.NoError(t, err)
	assert.Equal(t, llm.DefaultPrompts[driven.PromptAnswer], got)
}

func TestPromptStore_ConcurrentLoads(t *testing.T) {
	store, _ := newTestPromptStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := driven.PromptAnswer
			if i%2 == 0 {
				name = driven.PromptAnswerSystem
			}
			got, err := store.Load(name)
			assert.NoError(t, err)
			assert.NotEmpty(t, got)
			if i%5 == 0 {
				store.Reload()
			}
		}(i)
	}
	wg.Wait()
}
