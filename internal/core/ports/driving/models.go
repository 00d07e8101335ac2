package driving

import (
	"context"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// ModelService probes the configured model backends.
type ModelService interface {
	// Check probes the embedding backend then the answer generator.
	Check(ctx context.Context) []domain.ModelCheck
}
