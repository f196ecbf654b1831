package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rog/backend/internal/domain"
)

// TokenTTL is the lifetime of every issued token.
const TokenTTL = 30 * 24 * time.Hour

// Claims holds the custom JWT claims. The payload mirrors domain.Identity.
type Claims struct {
	jwt.RegisteredClaims
	Role domain.Role `json:"role"`
	LdID string      `json:"ldId"`
	Name string      `json:"name"`
	Code string      `json:"code"`
}

// Identity returns the caller identity carried by the claims.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{Code: c.Code, Name: c.Name, AssociationID: c.LdID, Role: c.Role}
}

// JWTManager signs and validates HS256 tokens with one process-wide secret.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTManager creates a JWT manager with the fixed token lifetime.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{secret: []byte(secret), ttl: TokenTTL, now: time.Now}
}

// GenerateToken creates a signed token for the identity and returns its expiry.
func (m *JWTManager) GenerateToken(id domain.Identity) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, domain.ErrMisconfigured("token signing secret is not configured")
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Code,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
		Role: id.Role,
		LdID: id.AssociationID,
		Name: id.Name,
		Code: id.Code,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and validates a JWT, returning claims if valid.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, domain.ErrMisconfigured("token signing secret is not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Code == "" {
		return nil, fmt.Errorf("token has no account code")
	}
	if claims.Role.Rank() == 0 {
		return nil, fmt.Errorf("token has unknown role %q", claims.Role)
	}

	return claims, nil
}
