package middleware

import (
	"errors"
	"strings"

	"facture-workflow/internal/config"
	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/pkg/jwt"
	"facture-workflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware creates authentication middleware. Expired tokens get the
// token_expired code so clients know to refresh and retry.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := bearerToken(c)
		if accessToken == "" {
			accessToken = c.Cookies("access_token")
		}
		if accessToken == "" {
			return response.ErrorWithCode(c, fiber.StatusUnauthorized, "invalid_token", "Access token required")
		}

		claims, err := jwt.ValidateAccessToken(accessToken, cfg.JWT.Secret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return response.ErrorWithCode(c, fiber.StatusUnauthorized, "token_expired", "Access token expired")
			}
			return response.ErrorWithCode(c, fiber.StatusUnauthorized, "invalid_token", "Invalid access token")
		}

		c.Locals("userID", claims.UserID)
		c.Locals("email", claims.Email)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(string)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, allowedRole := range allowedRoles {
			if role == string(allowedRole) {
				return c.Next()
			}
		}

		return response.ErrorWithCode(c, fiber.StatusForbidden, "forbidden", "You don't have permission to access this resource")
	}
}

// AdminOnly middleware allows only ADMIN role
func AdminOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleAdmin)
}

// TreasuryOnly middleware allows only T1 role
func TreasuryOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleT1)
}
