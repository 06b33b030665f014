package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fleetops/maintenance-service/internal/domain"
	apperrors "github.com/fleetops/maintenance-service/pkg/util/errorutil"
)

// RequireRole ensures the principal holds one of the allowed roles. Admins always pass.
func RequireRole(allowed ...domain.RoleID) fiber.Handler {
	roles := make([]domain.RoleID, 0, len(allowed)+1)
	roles = append(roles, allowed...)
	roles = append(roles, domain.RoleAdmin)
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowed) == 0 || principal.User.HasRole(roles...) {
			return c.Next()
		}
		return apperrors.NewForbidden("insufficient role")
	}
}

// RequireAuthenticated ensures a principal was loaded.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
