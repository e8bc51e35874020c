// Package jwt validates the bearer tokens issued by the identity
// provider. Tokens carry the caller's id, office, and scope grants.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"registrar/internal/platform/middleware"
	id "registrar/pkg/domain"
)

type tokenClaims struct {
	UserID   string   `json:"user_id"`
	OfficeID string   `json:"office_id"`
	Scopes   []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Validator checks HMAC-signed tokens against the shared signing key.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

func (v *Validator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("token user_id: %w", err)
	}
	officeID, err := uuid.Parse(claims.OfficeID)
	if err != nil {
		return nil, fmt.Errorf("token office_id: %w", err)
	}

	return &middleware.JWTClaims{
		UserID:   id.UserID(userID),
		OfficeID: id.OfficeID(officeID),
		Scopes:   id.ParseScopes(claims.Scopes),
	}, nil
}

// Sign issues a token for the given claims. Exposed for tests and local
// development tooling.
func Sign(signingKey string, userID id.UserID, officeID id.OfficeID, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID:   userID.String(),
		OfficeID: officeID.String(),
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(signingKey))
}
