package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetops/maintenance-service/internal/api/dto"
	"github.com/fleetops/maintenance-service/internal/domain"
	"github.com/fleetops/maintenance-service/internal/service"
	apperrors "github.com/fleetops/maintenance-service/pkg/util/errorutil"
)

// Accounts is the account surface the auth endpoints need.
type Accounts interface {
	Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error)
	CreateUser(ctx context.Context, input service.CreateUserInput) (*domain.User, error)
}

// AuthHandler exposes login and account creation.
type AuthHandler struct {
	accounts Accounts
}

// NewAuthHandler builds the handler.
func NewAuthHandler(accounts Accounts) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	_, token, exp, err := h.accounts.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Token: token, ExpiresAt: exp}})
}

// CreateUser POST /api/users.
func (h *AuthHandler) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	input := service.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Roles:    make([]domain.UserRole, 0, len(req.Roles)),
	}
	for _, r := range req.Roles {
		role := domain.UserRole{RoleID: domain.RoleID(r.RoleID), EmailNotifications: r.EmailNotifications}
		if r.NotificationGroupID != nil {
			group := domain.NotificationGroupID(*r.NotificationGroupID)
			role.NotificationGroupID = &group
		}
		input.Roles = append(input.Roles, role)
	}
	user, err := h.accounts.CreateUser(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

func userResponse(user *domain.User) dto.UserResponse {
	roles := make([]dto.UserRoleResponse, 0, len(user.Roles))
	for _, r := range user.Roles {
		resp := dto.UserRoleResponse{RoleID: int(r.RoleID), EmailNotifications: r.EmailNotifications}
		if r.NotificationGroupID != nil {
			group := int(*r.NotificationGroupID)
			resp.NotificationGroupID = &group
		}
		roles = append(roles, resp)
	}
	return dto.UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Roles:     roles,
		CreatedAt: user.CreatedAt,
	}
}
