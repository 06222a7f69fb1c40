// Package auth provides JWT token issuance and validation for the HTTP API.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "lotkeeper/internal/core/context"
)

// Claims carries the actor identity inside a signed token.
type Claims struct {
	jwt.RegisteredClaims
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	SessionID string   `json:"sid,omitempty"`
}

// JWTManager signs and validates HMAC tokens.
type JWTManager struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
}

// NewJWTManager creates a token manager with the given signing secret.
// A zero ttl defaults to 24 hours; a negative ttl issues already-expired
// tokens.
func NewJWTManager(secret string, issuer string, ttl time.Duration) *JWTManager {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &JWTManager{
		secret:   []byte(secret),
		issuer:   issuer,
		tokenTTL: ttl,
	}
}

// Issue creates a signed token for an actor.
func (m *JWTManager) Issue(actorID, email string, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
		Email: email,
		Roles: roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning the actor it names.
func (m *JWTManager) ValidateToken(tokenString string) (*appctx.ActorContext, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &appctx.ActorContext{
		ActorID:   claims.Subject,
		Email:     claims.Email,
		Roles:     claims.Roles,
		SessionID: claims.SessionID,
	}, nil
}
