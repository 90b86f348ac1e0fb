package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/router"
)

func secretEqual(given string, want string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}

// AdminAuth validates the X-Admin-Secret header for admin endpoints
func AdminAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if AdminSecretKey == "" {
			return router.ResponseForbidden(c, "Admin API is disabled")
		}

		adminSecret := c.Get("X-Admin-Secret")
		if adminSecret == "" {
			return router.ResponseUnauthorized(c, "Missing X-Admin-Secret header")
		}
		if !secretEqual(adminSecret, AdminSecretKey) {
			return router.ResponseUnauthorized(c, "Invalid admin secret")
		}

		return c.Next()
	}
}

// APIKeyAuth validates the X-API-Key header.
func APIKeyAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			return router.ResponseUnauthorized(c, "Missing X-API-Key header")
		}
		if APIKey == "" || !secretEqual(apiKey, APIKey) {
			return router.ResponseUnauthorized(c, "Invalid API key")
		}

		c.Locals("auth_method", "api_key")
		return c.Next()
	}
}

// SessionAuth accepts either the API key or a bearer session token issued
// for the :session_id of the route.
func SessionAuth() fiber.Handler {
	apiKeyAuth := APIKeyAuth()

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if c.Get("X-API-Key") != "" || authHeader == "" {
			return apiKeyAuth(c)
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			return router.ResponseUnauthorized(c, "Invalid Authorization header format. Use: Bearer <token>")
		}

		claims, err := ValidateSessionToken(parts[1])
		if err != nil {
			return router.ResponseUnauthorized(c, "Invalid or expired token")
		}
		if claims.SessionID != c.Params("session_id") {
			return router.ResponseForbidden(c, "Token is not valid for this session")
		}

		c.Locals("auth_method", "session_token")
		c.Locals("session_id", claims.SessionID)
		return c.Next()
	}
}
