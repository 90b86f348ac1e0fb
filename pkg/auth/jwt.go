package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokensDisabled = errors.New("JWT_SECRET_KEY not configured")

// SessionTokenClaims represents the claims in a session JWT
type SessionTokenClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a token scoped to one session id.
func GenerateSessionToken(sessionID string) (string, error) {
	if JWTSecretKey == "" {
		return "", ErrTokensDisabled
	}

	now := time.Now()
	claims := SessionTokenClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if SessionTokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(SessionTokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(JWTSecretKey))
}

// ValidateSessionToken validates a session JWT and returns the claims
func ValidateSessionToken(tokenString string) (*SessionTokenClaims, error) {
	if JWTSecretKey == "" {
		return nil, ErrTokensDisabled
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(JWTSecretKey), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionTokenClaims)
	if !ok || !token.Valid || claims.SessionID == "" || claims.Subject != claims.SessionID {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
