package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/domain"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// RequireRole ensures the caller holds one of the allowed roles.
func RequireRole(allowed ...domain.UserRole) fiber.Handler {
	allowedSet := make(map[domain.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		user, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[user.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireSupervisor admits SUPERVISOR and ADMIN callers.
func RequireSupervisor() fiber.Handler {
	return RequireRole(domain.UserRoleSupervisor, domain.UserRoleAdmin)
}

// RequireAdmin admits ADMIN callers.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.UserRoleAdmin)
}
