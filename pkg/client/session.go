package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/accueilpro/accueilpro/pkg/logger"
)

type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthState is a snapshot of the provider. While Loading is true the session
// is unknown, not absent.
type AuthState struct {
	Session *Session
	User    *UserInfo
	Profile *Profile
	Loading bool
}

func (s AuthState) SignedIn() bool {
	return !s.Loading && s.Session != nil
}

// TokenStore persists the session between provider instances. Load returns
// nil, nil when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Clear(ctx context.Context) error
}

type MemoryTokenStore struct {
	mu   sync.Mutex
	sess *Session
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Load(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = sess
	return nil
}

func (m *MemoryTokenStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

type SignUpOptions struct {
	FullName string
}

type SessionProvider struct {
	client *Client
	store  TokenStore

	mu        sync.Mutex
	state     AuthState
	listeners map[int]func(AuthEvent, AuthState)
	nextID    int
	closed    bool
}

// NewSessionProvider starts in the loading state; call Init to restore the
// stored session. A nil store keeps the session in memory.
func NewSessionProvider(c *Client, store TokenStore) *SessionProvider {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	return &SessionProvider{
		client:    c,
		store:     store,
		state:     AuthState{Loading: true},
		listeners: make(map[int]func(AuthEvent, AuthState)),
	}
}

// Init restores the stored session, refreshing it once if the access token
// was rejected, and resolves the profile. Loading is cleared in every case.
func (p *SessionProvider) Init(ctx context.Context) error {
	sess, err := p.store.Load(ctx)
	if err != nil {
		p.apply(EventInitialSession, nil, nil)
		return fmt.Errorf("failed to load stored session: %w", err)
	}
	if sess == nil {
		p.apply(EventInitialSession, nil, nil)
		return nil
	}

	event := EventInitialSession
	info, err := p.client.Session(ctx, sess.AccessToken)
	if IsStatus(err, http.StatusUnauthorized) && sess.RefreshToken != "" {
		refreshed, rerr := p.client.Refresh(ctx, sess.RefreshToken)
		if rerr != nil {
			logger.DebugContext(ctx, "Stored session could not be refreshed", "error", rerr)
			p.forget(ctx, EventInitialSession)
			return nil
		}
		sess, event = refreshed, EventTokenRefreshed
		if err := p.store.Save(ctx, sess); err != nil {
			logger.WarnContext(ctx, "Failed to store refreshed session", "error", err)
		}
		info, err = p.client.Session(ctx, sess.AccessToken)
	}
	if err != nil {
		if IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusNotFound) {
			p.forget(ctx, EventInitialSession)
			return nil
		}
		p.apply(EventInitialSession, nil, nil)
		return err
	}

	if sess.User == nil {
		sess.User = info.User
	}
	p.apply(event, sess, info.Profile)
	return nil
}

func (p *SessionProvider) SignIn(ctx context.Context, email, password string) error {
	sess, err := p.client.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	return p.establish(ctx, EventSignedIn, sess)
}

func (p *SessionProvider) SignUp(ctx context.Context, email, password string, opts SignUpOptions) error {
	sess, err := p.client.SignUp(ctx, email, password, opts.FullName)
	if err != nil {
		return err
	}
	return p.establish(ctx, EventSignedIn, sess)
}

// SignOut revokes the refresh token. Local state is cleared even when the
// auth service refuses; its error is still returned.
func (p *SessionProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	sess := p.state.Session
	p.mu.Unlock()

	var err error
	if sess != nil && sess.RefreshToken != "" {
		err = p.client.SignOut(ctx, sess.RefreshToken)
	}
	p.forget(ctx, EventSignedOut)
	return err
}

// Refresh rotates the token pair.
func (p *SessionProvider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	sess := p.state.Session
	p.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("no session to refresh")
	}

	refreshed, err := p.client.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return err
	}
	return p.establish(ctx, EventTokenRefreshed, refreshed)
}

func (p *SessionProvider) State() AuthState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// AccessToken returns the current bearer token, or "" when signed out.
func (p *SessionProvider) AccessToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Session == nil {
		return ""
	}
	return p.state.Session.AccessToken
}

// OnAuthStateChange registers fn for every later session change. The
// returned func unregisters it.
func (p *SessionProvider) OnAuthStateChange(fn func(AuthEvent, AuthState)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return func() {}
	}
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Close drops every listener; later changes are not broadcast.
func (p *SessionProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.listeners = make(map[int]func(AuthEvent, AuthState))
}

func (p *SessionProvider) establish(ctx context.Context, event AuthEvent, sess *Session) error {
	if err := p.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	p.apply(event, sess, p.resolveProfile(ctx, sess))
	return nil
}

func (p *SessionProvider) forget(ctx context.Context, event AuthEvent) {
	if err := p.store.Clear(ctx); err != nil {
		logger.WarnContext(ctx, "Failed to clear stored session", "error", err)
	}
	p.apply(event, nil, nil)
}

// resolveProfile looks the profile up by user id; a missing profile is nil.
func (p *SessionProvider) resolveProfile(ctx context.Context, sess *Session) *Profile {
	if sess == nil || sess.User == nil {
		return nil
	}
	profile, err := p.client.Profile(ctx, sess.AccessToken, sess.User.ID)
	if err != nil {
		if !IsStatus(err, http.StatusNotFound) {
			logger.WarnContext(ctx, "Failed to resolve profile", "error", err, "user_id", sess.User.ID)
		}
		return nil
	}
	return profile
}

func (p *SessionProvider) apply(event AuthEvent, sess *Session, profile *Profile) {
	p.mu.Lock()
	p.state = AuthState{Session: sess, Profile: profile}
	if sess != nil {
		p.state.User = sess.User
	}
	state := p.state
	fns := make([]func(AuthEvent, AuthState), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(event, state)
	}
}
