package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetops/maintenance-service/internal/api/dto"
	"github.com/fleetops/maintenance-service/internal/domain"
	apperrors "github.com/fleetops/maintenance-service/pkg/util/errorutil"
)

// InstallationStore reads and creates installations.
type InstallationStore interface {
	Create(ctx context.Context, inst *domain.Installation) error
	List(ctx context.Context) ([]domain.Installation, error)
}

// ResponsibleLister reads responsible parties.
type ResponsibleLister interface {
	List(ctx context.Context) ([]domain.ResponsibleParty, error)
}

// ReferenceHandler serves installations and responsible parties.
type ReferenceHandler struct {
	installations InstallationStore
	responsibles  ResponsibleLister
}

// NewReferenceHandler builds the handler.
func NewReferenceHandler(installations InstallationStore, responsibles ResponsibleLister) *ReferenceHandler {
	return &ReferenceHandler{installations: installations, responsibles: responsibles}
}

// ListInstallations GET /api/installations.
func (h *ReferenceHandler) ListInstallations(c *fiber.Ctx) error {
	items, err := h.installations.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	resp := make([]fiber.Map, 0, len(items))
	for _, inst := range items {
		resp = append(resp, installationResponse(inst))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateInstallation POST /api/installations.
func (h *ReferenceHandler) CreateInstallation(c *fiber.Ctx) error {
	var req dto.CreateInstallationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	inst := domain.Installation{Name: req.Name, FolioCode: req.FolioCode}
	if err := h.installations.Create(c.UserContext(), &inst); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": installationResponse(inst)})
}

// ListResponsibles GET /api/responsibles.
func (h *ReferenceHandler) ListResponsibles(c *fiber.Ctx) error {
	items, err := h.responsibles.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	resp := make([]fiber.Map, 0, len(items))
	for _, p := range items {
		resp = append(resp, fiber.Map{"id": p.ID, "name": p.Name, "user_id": p.UserID, "email": p.Email})
	}
	return c.JSON(fiber.Map{"data": resp})
}

func installationResponse(inst domain.Installation) fiber.Map {
	return fiber.Map{
		"id":         inst.ID,
		"name":       inst.Name,
		"folio_code": inst.FolioCode,
		"created_at": inst.CreatedAt,
	}
}
