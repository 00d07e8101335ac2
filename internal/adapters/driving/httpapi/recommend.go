package httpapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
)

// RecommendHandler serves product recommendations.
type RecommendHandler struct {
	service driving.RecommendationService
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(service driving.RecommendationService) *RecommendHandler {
	return &RecommendHandler{service: service}
}

// Register sets up recommendation routes.
func (h *RecommendHandler) Register(router fiber.Router) {
	router.Get("/products/:id/recommendations", h.Recommend)
}

// Recommend returns products similar to the product in the path.
func (h *RecommendHandler) Recommend(c fiber.Ctx) error {
	start := time.Now()

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: product id must be an integer", domain.ErrValidation)
	}
	k, err := queryInt(c, "k")
	if err != nil {
		return err
	}
	diversify, err := queryBool(c, "diversity")
	if err != nil {
		return err
	}

	req := domain.RecommendRequest{ItemID: id, K: k, Diversify: diversify}
	recs, err := h.service.Recommend(c.Context(), req)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}

	return c.JSON(fiber.Map{
		"product_id":      id,
		"recommendations": recs,
		"count":           len(recs),
		"parameters": fiber.Map{
			"k":         req.Normalise().K,
			"diversity": diversify,
		},
		"response_time_ms": elapsedMillis(start),
		"status":           "success",
	})
}
