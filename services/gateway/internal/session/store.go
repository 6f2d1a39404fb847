// Package session keeps each browser's token pair in Redis under the id
// carried by the session cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/accueilpro/accueilpro/pkg/cache"
	"github.com/accueilpro/accueilpro/pkg/client"
	"github.com/google/uuid"
)

const keyPrefix = "gateway:session:"

type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewStore(c cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

// NewID returns a fresh cookie value.
func NewID() string {
	return uuid.NewString()
}

// For returns the token store of one browser session.
func (s *Store) For(id string) client.TokenStore {
	return &tokenStore{store: s, key: keyPrefix + id}
}

type tokenStore struct {
	store *Store
	key   string
}

func (t *tokenStore) Load(ctx context.Context) (*client.Session, error) {
	var sess client.Session
	err := t.store.cache.GetJSON(ctx, t.key, &sess)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &sess, nil
}

func (t *tokenStore) Save(ctx context.Context, sess *client.Session) error {
	return t.store.cache.SetJSON(ctx, t.key, sess, t.store.ttl)
}

func (t *tokenStore) Clear(ctx context.Context) error {
	return t.store.cache.Delete(ctx, t.key)
}
