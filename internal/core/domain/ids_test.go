package domain

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"124", "1000", -1},
		{"1000", "124", 1},
		{"7", "7", 0},
		{"-3", "2", -1},
		{"doc:1", "doc:2", -1},
		{"12", "abc", -1},
		{"abc", "12", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareIDs(tt.a, tt.b))
		})
	}
}

func TestCompareIDs_SortsNumerically(t *testing.T) {
	ids := []string{"1000", "b", "124", "a", "9"}
	sort.Slice(ids, func(i, j int) bool { return CompareIDs(ids[i], ids[j]) < 0 })
	assert.Equal(t, []string{"9", "124", "1000", "a", "b"}, ids)
}

func TestItemKeyRoundTrip(t *testing.T) {
	id, err := ParseItemKey(ItemKey(123))
	assert.NoError(t, err)
	assert.Equal(t, int64(123), id)

	_, err = ParseItemKey("doc:1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCorpusForArtifact(t *testing.T) {
	c, err := CorpusForArtifact(ArtifactProductIndex)
	assert.NoError(t, err)
	assert.Equal(t, CorpusProducts, c)

	c, err = CorpusForArtifact("documents")
	assert.NoError(t, err)
	assert.Equal(t, CorpusDocuments, c)
	assert.Equal(t, ArtifactDocumentIndex, c.Artifact())

	_, err = CorpusForArtifact("orders_index")
	assert.ErrorIs(t, err, ErrUnknownArtifact)
}
