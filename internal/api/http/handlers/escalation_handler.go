package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetops/maintenance-service/internal/service"
	apperrors "github.com/fleetops/maintenance-service/pkg/util/errorutil"
)

// EscalationRunner runs and reports the deadline batch.
type EscalationRunner interface {
	Run(ctx context.Context) (*service.RunSummary, error)
	LastRun(ctx context.Context) (*service.RunSummary, error)
}

// EscalationHandler lets oversight trigger the alert jobs on demand.
type EscalationHandler struct {
	runner   EscalationRunner
	critical service.CriticalEvaluator
}

// NewEscalationHandler builds the handler.
func NewEscalationHandler(runner EscalationRunner, critical service.CriticalEvaluator) *EscalationHandler {
	return &EscalationHandler{runner: runner, critical: critical}
}

// Run POST /api/escalation/run. The batch outlives the request.
func (h *EscalationHandler) Run(c *fiber.Ctx) error {
	summary, err := h.runner.Run(context.WithoutCancel(c.UserContext()))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// LastRun GET /api/escalation/last-run.
func (h *EscalationHandler) LastRun(c *fiber.Ctx) error {
	summary, err := h.runner.LastRun(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// EvaluateInstallation POST /api/installations/:id/critical-conditions.
func (h *EscalationHandler) EvaluateInstallation(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperrors.NewValidationError("invalid installation id", map[string]any{"id": c.Params("id")})
	}
	summary, err := h.critical.Evaluate(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}
