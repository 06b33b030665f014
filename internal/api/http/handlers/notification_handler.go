package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetops/maintenance-service/internal/api/dto"
	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/service"
	apperrors "github.com/fleetops/maintenance-service/pkg/util/errorutil"
)

// NotificationLister reads generated notifications.
type NotificationLister interface {
	List(ctx context.Context, filter service.NotificationListFilter) ([]domain.GeneratedNotification, error)
}

// NotificationHandler exposes the in-app notification feed.
type NotificationHandler struct {
	notifications NotificationLister
}

// NewNotificationHandler builds the handler.
func NewNotificationHandler(notifications NotificationLister) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List GET /api/notifications?group=6,7&ticket_id=3.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	filter := service.NotificationListFilter{}
	if groups := c.Query("group"); groups != "" {
		for _, part := range strings.Split(groups, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || id <= 0 {
				return apperrors.NewValidationError("invalid group", map[string]any{"group": part})
			}
			filter.Groups = append(filter.Groups, domain.NotificationGroupID(id))
		}
	}
	ticket, err := parseID(c.Query("ticket_id"), "ticket_id")
	if err != nil {
		return err
	}
	filter.TicketID = ticket
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	items, err := h.notifications.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	resp := make([]dto.NotificationResponse, 0, len(items))
	for _, n := range items {
		resp = append(resp, dto.NotificationResponse{
			ID:        n.ID,
			TicketID:  n.TicketID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			Group:     n.NotificationGroupID,
			CreatedAt: n.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}
