package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func price(v float64) *float64 { return &v }

func TestSearchRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SearchRequest
		wantErr bool
	}{
		{"empty query", SearchRequest{Query: ""}, true},
		{"whitespace query", SearchRequest{Query: "   "}, true},
		{"tabs and newlines", SearchRequest{Query: "\t\n"}, true},
		{"valid", SearchRequest{Query: "samsung"}, false},
		{"negative k", SearchRequest{Query: "samsung", K: -1}, true},
		{"inverted price range", SearchRequest{Query: "tv", Filters: SearchFilters{MinPrice: price(500), MaxPrice: price(100)}}, true},
		{"negative price", SearchRequest{Query: "tv", Filters: SearchFilters{MinPrice: price(-1)}}, true},
		{"valid price range", SearchRequest{Query: "tv", Filters: SearchFilters{MinPrice: price(100), MaxPrice: price(500)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSearchRequest_Normalise(t *testing.T) {
	req := SearchRequest{
		Query:   "  iphone   15 ",
		Filters: SearchFilters{CategoryIDs: []int64{3, 1, 3, 2}},
	}.Normalise()

	assert.Equal(t, "iphone 15", req.Query)
	assert.Equal(t, DefaultSearchK, req.K)
	assert.Equal(t, []int64{1, 2, 3}, req.Filters.CategoryIDs)

	assert.Equal(t, MaxSearchK, SearchRequest{Query: "x", K: 1000}.Normalise().K)
}

func TestSearchFilters_Matches(t *testing.T) {
	item := CatalogItem{ID: 1, CategoryID: 2, Price: 199.99}

	assert.True(t, SearchFilters{}.Matches(item))
	assert.True(t, SearchFilters{CategoryIDs: []int64{2, 5}}.Matches(item))
	assert.False(t, SearchFilters{CategoryIDs: []int64{5}}.Matches(item))
	assert.True(t, SearchFilters{MinPrice: price(199.99), MaxPrice: price(199.99)}.Matches(item))
	assert.False(t, SearchFilters{MaxPrice: price(100)}.Matches(item))
	assert.False(t, SearchFilters{MinPrice: price(200)}.Matches(item))
}

func TestRecommendRequest(t *testing.T) {
	assert.ErrorIs(t, RecommendRequest{ItemID: 0}.Validate(), ErrValidation)
	assert.ErrorIs(t, RecommendRequest{ItemID: 1, K: -2}.Validate(), ErrValidation)
	assert.NoError(t, RecommendRequest{ItemID: 123, K: 1}.Validate())

	assert.Equal(t, DefaultRecommendK, RecommendRequest{ItemID: 1}.Normalise().K)
	assert.Equal(t, MaxRecommendK, RecommendRequest{ItemID: 1, K: 75}.Normalise().K)
	assert.Equal(t, 1, RecommendRequest{ItemID: 1, K: 1}.Normalise().K)
}

func TestAskRequest_Validate(t *testing.T) {
	assert.ErrorIs(t, AskRequest{Question: " "}.Validate(), ErrValidation)
	assert.NoError(t, AskRequest{Question: "How do returns work?"}.Validate())

	long := make([]rune, MaxQuestionLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, AskRequest{Question: string(long)}.Validate(), ErrValidation)
}
