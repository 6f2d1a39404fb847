package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"

	audience = "accueilpro-api"
)

var ErrWrongTokenType = errors.New("wrong token type")

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a user UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

func newToken(userID uuid.UUID, email, role, typ, secret string, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		Role:  role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{audience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func NewAccessToken(userID uuid.UUID, email, role, secret string, ttl time.Duration) (string, error) {
	tok, _, err := newToken(userID, email, role, TokenAccess, secret, ttl)
	return tok, err
}

// NewRefreshToken also returns the claims so callers can track the jti for revocation.
func NewRefreshToken(userID uuid.UUID, email, role, secret string, ttl time.Duration) (string, *Claims, error) {
	return newToken(userID, email, role, TokenRefresh, secret, ttl)
}

func Parse(tokenString, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := tok.Claims.(*Claims); ok && tok.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// ParseAs parses a token and checks its type.
func ParseAs(tokenString, secret, typ string) (*Claims, error) {
	claims, err := Parse(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrWrongTokenType, claims.Type, typ)
	}
	return claims, nil
}
