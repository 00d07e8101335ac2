package httpapi

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
)

// AssistantHandler serves knowledge base questions.
type AssistantHandler struct {
	service driving.AssistantService
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(service driving.AssistantService) *AssistantHandler {
	return &AssistantHandler{service: service}
}

// Register sets up assistant routes.
func (h *AssistantHandler) Register(router fiber.Router) {
	router.Post("/assistant/ask", h.Ask)
}

// askBody is the request body of the ask endpoint.
type askBody struct {
	Question    string            `json:"question"`
	UserContext map[string]string `json:"user_context"`
}

// Ask answers the question in the request body with cited sources.
func (h *AssistantHandler) Ask(c fiber.Ctx) error {
	start := time.Now()

	var body askBody
	if err := c.Bind().JSON(&body); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}

	answer, err := h.service.Ask(c.Context(), domain.AskRequest{
		Question: body.Question,
		Context:  body.UserContext,
	})
	if err != nil {
		return err
	}

	return c.JSON(askResponse{Answer: *answer, ResponseTimeMs: elapsedMillis(start)})
}

type askResponse struct {
	domain.Answer
	ResponseTimeMs float64 `json:"response_time_ms"`
}
