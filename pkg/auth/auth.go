package auth

import (
	"time"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/env"
)

// APIKey guards every /api route (X-API-Key).
var APIKey string

// AdminSecretKey for admin API endpoints (/api/admin/*)
var AdminSecretKey string

// JWTSecretKey signs session tokens. Empty disables them.
var JWTSecretKey string

// SessionTokenTTL bounds session token validity. Zero issues tokens without expiry.
var SessionTokenTTL time.Duration

func init() {
	APIKey, _ = env.GetEnvString("API_KEY")
	AdminSecretKey, _ = env.GetEnvString("ADMIN_SECRET_KEY")
	JWTSecretKey, _ = env.GetEnvString("JWT_SECRET_KEY")
	SessionTokenTTL = env.GetEnvDurationOrDefault("JWT_SESSION_TOKEN_TTL", 0)
}
