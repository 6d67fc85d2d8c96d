package middleware

import (
	"context"
	"strings"

	"inventory/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TokenCookie is the name of the session cookie.
const TokenCookie = "token"

// LocalUserID is the fiber.Ctx locals key holding the authenticated user id.
const LocalUserID = "user_id"

// TokenValidator verifies a session token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*services.Claims, error)
}

// AuthRequired is a Fiber middleware that admits requests carrying a valid
// session token, read from the cookie or, failing that, a Bearer header.
func AuthRequired(validator TokenValidator, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := TokenFromRequest(c)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authorized, please login")
		}

		claims, err := validator.ValidateToken(c.UserContext(), token)
		if err != nil {
			log.Debug("session rejected", zap.String("path", c.Path()), zap.Error(err))
			return err
		}

		// Store the owner for subsequent handlers
		c.Locals(LocalUserID, claims.UserID)
		return c.Next()
	}
}

// TokenFromRequest returns the session token of c, or "" when none was sent.
func TokenFromRequest(c *fiber.Ctx) string {
	if token := c.Cookies(TokenCookie); token != "" {
		return token
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// UserID returns the id stored by AuthRequired.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
