package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

func TestRecommendCmd_Use(t *testing.T) {
	assert.Equal(t, "recommend [product-id]", recommendCmd.Use)
}

func TestRecommendCmd_Flags(t *testing.T) {
	limit := recommendCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "10", limit.DefValue)

	diversify := recommendCmd.Flags().Lookup("diversify")
	require.NotNil(t, diversify)
	assert.Equal(t, "d", diversify.Shorthand)
	assert.Equal(t, "false", diversify.DefValue)
}

func TestRecommendCmd_RequiresExactlyOneArg(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("recommend")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestRecommendCmd_InvalidID(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("recommend", "abc")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRecommendCmd_Executes(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.recommend.recs = []domain.Recommendation{
		{ItemID: 12, Score: 0.93, Reason: "Very similar, same brand"},
		{ItemID: 15, Score: 0.71},
	}

	out, err := execute("recommend", "42", "-n", "2", "--diversify")

	require.NoError(t, err)
	assert.Equal(t, domain.RecommendRequest{ItemID: 42, K: 2, Diversify: true}, ts.recommend.lastReq)
	assert.Contains(t, out, "Similar to product 42")
	assert.Contains(t, out, "[1] product 12 (0.930)")
	assert.Contains(t, out, "Very similar, same brand")
	assert.Contains(t, out, "[2] product 15")
}

func TestRecommendCmd_NoResults(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("recommend", "42")

	require.NoError(t, err)
	assert.Contains(t, out, "No similar products found.")
}

func TestRecommendCmd_JSON(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.recommend.recs = []domain.Recommendation{{ItemID: 3, Score: 0.5, Reason: "Similar"}}

	out, err := execute("recommend", "1", "--json")

	require.NoError(t, err)
	var recs []domain.Recommendation
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Equal(t, ts.recommend.recs, recs)
}

func TestRecommendCmd_UnknownItem(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.recommend.err = domain.ErrUnknownItem

	_, err := execute("recommend", "999")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownItem)
	assert.Contains(t, err.Error(), "recommend failed")
}
