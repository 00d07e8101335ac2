package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
)

// SearchHandler serves hybrid product search.
type SearchHandler struct {
	service driving.SearchService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service driving.SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// Register sets up search routes.
func (h *SearchHandler) Register(router fiber.Router) {
	router.Get("/search", h.Search)
}

// Search ranks catalog products for the q parameter.
func (h *SearchHandler) Search(c fiber.Ctx) error {
	start := time.Now()

	req, err := parseSearchRequest(c)
	if err != nil {
		return err
	}

	hits, err := h.service.Search(c.Context(), req)
	if err != nil {
		return err
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}

	norm := req.Normalise()
	return c.JSON(fiber.Map{
		"query":   norm.Query,
		"results": hits,
		"count":   len(hits),
		"parameters": fiber.Map{
			"k":            norm.K,
			"category_ids": norm.Filters.CategoryIDs,
			"min_price":    norm.Filters.MinPrice,
			"max_price":    norm.Filters.MaxPrice,
		},
		"response_time_ms": elapsedMillis(start),
		"status":           "success",
	})
}

func parseSearchRequest(c fiber.Ctx) (domain.SearchRequest, error) {
	var req domain.SearchRequest
	var err error

	req.Query = c.Query("q")
	if req.K, err = queryInt(c, "k"); err != nil {
		return req, err
	}
	if req.Filters.CategoryIDs, err = queryIDs(c, "category"); err != nil {
		return req, err
	}
	if req.Filters.MinPrice, err = queryFloat(c, "min_price"); err != nil {
		return req, err
	}
	if req.Filters.MaxPrice, err = queryFloat(c, "max_price"); err != nil {
		return req, err
	}
	return req, nil
}
