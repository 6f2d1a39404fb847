package repository

import (
	"context"
	"time"

	"github.com/accueilpro/accueilpro/pkg/cache"
)

// TokenRepository remembers revoked refresh tokens until they would expire anyway.
type TokenRepository interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type tokenRepository struct {
	cache cache.Cache
	now   func() time.Time
}

func NewTokenRepository(c cache.Cache) TokenRepository {
	return &tokenRepository{cache: c, now: time.Now}
}

func revokedKey(jti string) string {
	return "auth:revoked:" + jti
}

func (r *tokenRepository) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.cache.SetNX(ctx, revokedKey(jti), "1", ttl)
	return err
}

func (r *tokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.cache.Exists(ctx, revokedKey(jti))
}
