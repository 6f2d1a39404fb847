package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/accueilpro/accueilpro/pkg/auth"
	"github.com/accueilpro/accueilpro/pkg/cache"
	"github.com/accueilpro/accueilpro/pkg/response"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const secret = "mw-secret"

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter(cache.NewMemory(), RateLimitConfig{Requests: 2, Window: time.Minute})
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent {
		t.Fatalf("first two requests got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request got %d, want 429", codes[2])
	}

	// another client is unaffected
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.168.1.9:4444"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("other client got %d, want 204", rr.Code)
	}
}

func TestRateLimiterBucketsForwardedClientsSeparately(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.5", "172.16.0.0/12"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	rl := NewRateLimiter(cache.NewMemory(), RateLimitConfig{Requests: 1, Window: time.Minute})
	h := TrustedRealIP(trusted)(rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	login := func(peer, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = peer
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	// two browsers behind the gateway get a bucket each
	if got := login("10.0.0.5:3000", "203.0.113.1"); got != http.StatusNoContent {
		t.Fatalf("first browser got %d, want 204", got)
	}
	if got := login("10.0.0.5:3001", "203.0.113.2"); got != http.StatusNoContent {
		t.Errorf("second browser got %d, want 204", got)
	}
	if got := login("172.16.4.2:3002", "203.0.113.1"); got != http.StatusTooManyRequests {
		t.Errorf("repeat from first browser got %d, want 429", got)
	}

	// a direct caller cannot pick a fresh bucket by forging the header
	if got := login("198.51.100.7:5000", "203.0.113.50"); got != http.StatusNoContent {
		t.Fatalf("direct caller got %d, want 204", got)
	}
	if got := login("198.51.100.7:5001", "203.0.113.51"); got != http.StatusTooManyRequests {
		t.Errorf("forged header got %d, want 429", got)
	}
}

func TestParseTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := ParseTrustedProxies([]string{"gateway"}); err == nil {
		t.Error("want an error for a host name")
	}
	got, err := ParseTrustedProxies([]string{" ", "::1", "10.1.2.3/8"})
	if err != nil || len(got) != 2 || got[1].String() != "10.0.0.0/8" {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestRequireJWT(t *testing.T) {
	r := chi.NewRouter()
	r.With(RequireJWT(secret)).Get("/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(Claims(r).Email))
	})
	r.With(RequireJWT(secret, "admin")).Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tok, _ := auth.NewAccessToken(uuid.New(), "desk@example.com", "reception", secret, time.Minute)
	refresh, _, _ := auth.NewRefreshToken(uuid.New(), "desk@example.com", "reception", secret, time.Minute)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"no token", "/me", "", http.StatusUnauthorized},
		{"access token", "/me", tok, http.StatusOK},
		{"refresh token rejected", "/me", refresh, http.StatusUnauthorized},
		{"wrong role", "/admin", tok, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	var calls int32
	h := Idempotency(cache.NewMemory())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		response.WriteJSON(w, http.StatusCreated, map[string]int32{"n": n})
	}))

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/visitors", strings.NewReader("{}"))
		req.Header.Set("Idempotency-Key", key)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	first := send("abc")
	second := send("abc")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("codes %d %d, want 201 201", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("replayed body %q, want %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("missing replay header")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("handler ran %d times, want 1", got)
	}

	send("other")
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("handler ran %d times, want 2", got)
	}
}

func TestHealth(t *testing.T) {
	h := Health(http.NotFoundHandler())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Errorf("got %d %s", rr.Code, rr.Body.String())
	}
}
