package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/errs"
)

// Claims carried by an access token. UID and Role are what the actor
// middleware needs; everything else is standard.
type Claims struct {
	UID  uint   `json:"uid"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies bearer access tokens.
type Tokens struct {
	secret []byte
	expiry time.Duration
}

func NewTokens(secret string, expiryMinutes int) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		expiry: time.Duration(expiryMinutes) * time.Minute,
	}
}

// Expiry returns the configured token lifetime.
func (t *Tokens) Expiry() time.Duration {
	return t.expiry
}

// Issue creates a signed access token for the given user.
func (t *Tokens) Issue(userID uint, role, subject string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UID:  userID,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errs.Unauthorizedf("invalid token")
	}
	if claims.UID == 0 || claims.Role == "" {
		return nil, errs.Unauthorizedf("invalid token")
	}
	return claims, nil
}
