package httpapi

import (
	"fmt"
	"slices"

	"github.com/gofiber/fiber/v3"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// AdminHandler serves operator endpoints under /ml.
type AdminHandler struct {
	ports Ports
}

// NewAdminHandler creates a new admin handler. Routes whose port is nil
// are not registered.
func NewAdminHandler(ports Ports) *AdminHandler {
	return &AdminHandler{ports: ports}
}

// Register sets up operator routes.
func (h *AdminHandler) Register(router fiber.Router) {
	ml := router.Group("/ml")
	if h.ports.Status != nil {
		ml.Get("/status", h.Status)
	}
	if h.ports.Manifest != nil {
		ml.Get("/manifest", h.Manifest)
		ml.Get("/manifest/:artifact", h.ManifestEntry)
	}
	if h.ports.Rebuild != nil {
		ml.Post("/rebuild/:artifact", h.Rebuild)
	}
	if h.ports.Cache != nil {
		ml.Get("/cache", h.CacheStats)
		ml.Delete("/cache", h.InvalidateCache)
	}
	if h.ports.Scheduler != nil {
		ml.Get("/tasks", h.Tasks)
		ml.Post("/tasks/:id/run", h.RunTask)
	}
}

// Status returns the operational snapshot. Unhealthy snapshots are served
// with 503 so load balancers can act on them.
func (h *AdminHandler) Status(c fiber.Ctx) error {
	status, err := h.ports.Status.Status(c.Context())
	if err != nil {
		return err
	}
	code := fiber.StatusOK
	if !status.Healthy {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(status)
}

// Manifest returns one summary line per current artifact and the
// integrity violations found.
func (h *AdminHandler) Manifest(c fiber.Ctx) error {
	summary, err := h.ports.Manifest.Summary(c.Context())
	if err != nil {
		return err
	}
	violations, err := h.ports.Manifest.Validate(c.Context())
	if err != nil {
		return err
	}
	if summary == nil {
		summary = []domain.ArtifactSummary{}
	}
	if violations == nil {
		violations = []domain.IntegrityViolation{}
	}
	return c.JSON(fiber.Map{
		"artifacts":  summary,
		"violations": violations,
		"valid":      len(violations) == 0,
	})
}

// ManifestEntry returns the current entry of one artifact.
func (h *AdminHandler) ManifestEntry(c fiber.Ctx) error {
	entry, err := h.ports.Manifest.Current(c.Context(), c.Params("artifact"))
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

// Rebuild builds and promotes a new generation of an index artifact.
// The request waits for the build; a build already running yields 409.
func (h *AdminHandler) Rebuild(c fiber.Ctx) error {
	force, err := queryBool(c, "force")
	if err != nil {
		return err
	}
	record, err := h.ports.Rebuild.TriggerRebuild(c.Context(), c.Params("artifact"), force)
	if err != nil {
		return err
	}
	return c.JSON(record)
}

// CacheStats reports cache effectiveness.
func (h *AdminHandler) CacheStats(c fiber.Ctx) error {
	stats := h.ports.Cache.Stats(c.Context())
	return c.JSON(fiber.Map{
		"stats":    stats,
		"hit_rate": stats.HitRate(),
	})
}

// InvalidateCache drops every cached result.
func (h *AdminHandler) InvalidateCache(c fiber.Ctx) error {
	if err := h.ports.Cache.InvalidateAll(c.Context()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Tasks lists the scheduled tasks with their recent results.
func (h *AdminHandler) Tasks(c fiber.Ctx) error {
	history := 3
	if c.Query("history") != "" {
		var err error
		if history, err = queryInt(c, "history"); err != nil {
			return err
		}
	}
	tasks, err := h.ports.Scheduler.Tasks(c.Context(), history)
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []domain.TaskStatus{}
	}
	return c.JSON(tasks)
}

// RunTask makes a built-in task due now. The scheduler picks it up on its
// next wake-up, so the response does not wait for the run.
func (h *AdminHandler) RunTask(c fiber.Ctx) error {
	id := c.Params("id")
	if !slices.ContainsFunc(domain.BuiltinTasks(), func(t domain.TaskSpec) bool { return t.ID == id }) {
		return fmt.Errorf("%w: task %q", domain.ErrNotFound, id)
	}
	h.ports.Scheduler.RunNow(id)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"task": id, "queued": true})
}
