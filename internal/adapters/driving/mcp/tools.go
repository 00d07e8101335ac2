package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// RecommendInput is the input schema for the recommend tool.
type RecommendInput struct {
	ProductID int64 `json:"product_id" jsonschema:"catalog id of the seed product"`
	K         int   `json:"k,omitempty" jsonschema:"number of recommendations (default 10, max 50)"`
	Diversify bool  `json:"diversify,omitempty" jsonschema:"trade some similarity for variety"`
}

// RecommendOutput is the output schema for the recommend tool.
type RecommendOutput struct {
	ProductID       int64           `json:"product_id"`
	Recommendations []ScoredProduct `json:"recommendations"`
	Count           int             `json:"count"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"free-text product query"`
	K           int      `json:"k,omitempty" jsonschema:"maximum number of results (default 20, max 100)"`
	CategoryIDs []int64  `json:"category_ids,omitempty" jsonschema:"restrict results to these category ids"`
	MinPrice    *float64 `json:"min_price,omitempty" jsonschema:"inclusive lower price bound"`
	MaxPrice    *float64 `json:"max_price,omitempty" jsonschema:"inclusive upper price bound"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Query   string          `json:"query"`
	Results []ScoredProduct `json:"results"`
	Count   int             `json:"count"`
}

// ScoredProduct is one ranked catalog product.
type ScoredProduct struct {
	ID     int64   `json:"id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string            `json:"question" jsonschema:"customer question about the store"`
	Context  map[string]string `json:"context,omitempty" jsonschema:"optional caller context such as page or locale"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.sdk, &mcp.Tool{
		Name:        "recommend",
		Description: "Find catalog products similar to a given product",
	}, s.handleRecommend)

	mcp.AddTool(s.sdk, &mcp.Tool{
		Name:        "search",
		Description: "Search the product catalog with a free-text query and optional filters",
	}, s.handleSearch)

	if s.ports.Assistant != nil {
		mcp.AddTool(s.sdk, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a customer question from the store knowledge base, with cited sources",
		}, s.handleAsk)
	}
}

// handleRecommend handles the recommend tool invocation.
func (s *Server) handleRecommend(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RecommendInput,
) (*mcp.CallToolResult, RecommendOutput, error) {
	recs, err := s.ports.Recommend.Recommend(ctx, domain.RecommendRequest{
		ItemID:    input.ProductID,
		K:         input.K,
		Diversify: input.Diversify,
	})
	if err != nil {
		return nil, RecommendOutput{}, err
	}

	output := RecommendOutput{
		ProductID:       input.ProductID,
		Recommendations: make([]ScoredProduct, len(recs)),
		Count:           len(recs),
	}
	for i, r := range recs {
		output.Recommendations[i] = ScoredProduct{ID: r.ItemID, Score: r.Score, Reason: r.Reason}
	}
	return nil, output, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	hits, err := s.ports.Search.Search(ctx, domain.SearchRequest{
		Query: input.Query,
		K:     input.K,
		Filters: domain.SearchFilters{
			CategoryIDs: input.CategoryIDs,
			MinPrice:    input.MinPrice,
			MaxPrice:    input.MaxPrice,
		},
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: make([]ScoredProduct, len(hits)),
		Count:   len(hits),
	}
	for i, h := range hits {
		output.Results[i] = ScoredProduct{ID: h.ItemID, Score: h.Score, Reason: h.Reason}
	}
	return nil, output, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, domain.Answer, error) {
	if s.ports.Assistant == nil {
		return nil, domain.Answer{}, errors.New("assistant is not configured")
	}
	answer, err := s.ports.Assistant.Ask(ctx, domain.AskRequest{
		Question: input.Question,
		Context:  input.Context,
	})
	if err != nil {
		return nil, domain.Answer{}, err
	}
	return nil, *answer, nil
}
