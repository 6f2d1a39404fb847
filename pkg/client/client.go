// Package client is the typed Go client for the auth and visitors services,
// plus the session provider and live visitor query built on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/accueilpro/accueilpro/pkg/logger"
	"github.com/accueilpro/accueilpro/pkg/visits"
	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
)

type UserInfo struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type Profile struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         *UserInfo `json:"user"`
}

type SessionInfo struct {
	User    *UserInfo `json:"user"`
	Profile *Profile  `json:"profile"`
}

type CheckIn struct {
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	Phone         string        `json:"phone"`
	IDType        visits.IDType `json:"id_type"`
	IDNumber      string        `json:"id_number"`
	Photo         *string       `json:"photo,omitempty"`
	VisitPurpose  string        `json:"visit_purpose"`
	PersonToVisit string        `json:"person_to_visit"`
}

type StatsReport struct {
	Stats    visits.DashboardStats `json:"stats"`
	Trends   visits.Trends         `json:"trends"`
	Activity []visits.DayActivity  `json:"activity"`
}

// HistoryQuery is encoded as the history endpoint's query string.
type HistoryQuery struct {
	Search string        `url:"q,omitempty"`
	Status visits.Status `url:"status,omitempty"`
	Date   string        `url:"date,omitempty"` // YYYY-MM-DD
}

// APIError is a non-2xx answer from a service, decoded from its
// {"error", "code"} body.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	authURL     string
	visitorsURL string
	http        *http.Client
	stream      *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the client used for ordinary requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(authURL, visitorsURL string, opts ...Option) *Client {
	c := &Client{
		authURL:     strings.TrimRight(authURL, "/"),
		visitorsURL: strings.TrimRight(visitorsURL, "/"),
		http:        &http.Client{Timeout: 30 * time.Second},
		// change streams stay open indefinitely
		stream: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ---------- Auth ----------

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var sess Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, c.authURL+"/login", "", body, nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	var sess Session
	body := map[string]string{"email": email, "password": password, "full_name": fullName}
	if err := c.do(ctx, http.MethodPost, c.authURL+"/signup", "", body, nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) SignOut(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}
	return c.do(ctx, http.MethodPost, c.authURL+"/logout", "", body, nil, nil)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var sess Session
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, c.authURL+"/refresh", "", body, nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) Session(ctx context.Context, accessToken string) (*SessionInfo, error) {
	var info SessionInfo
	if err := c.do(ctx, http.MethodGet, c.authURL+"/session", accessToken, nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) Profile(ctx context.Context, accessToken string, id uuid.UUID) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, c.authURL+"/profiles/"+id.String(), accessToken, nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ---------- Visitors ----------

func (c *Client) ListVisitors(ctx context.Context, accessToken string) ([]visits.Visitor, error) {
	var list []visits.Visitor
	if err := c.do(ctx, http.MethodGet, c.visitorsURL+"/visitors", accessToken, nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CheckIn registers a visitor. A non-empty idempotencyKey makes a retried
// submission return the first result instead of inserting twice.
func (c *Client) CheckIn(ctx context.Context, accessToken string, in CheckIn, idempotencyKey string) (*visits.Visitor, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var v visits.Visitor
	if err := c.do(ctx, http.MethodPost, c.visitorsURL+"/visitors", accessToken, in, headers, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) Checkout(ctx context.Context, accessToken string, id uuid.UUID) (*visits.Visitor, error) {
	var v visits.Visitor
	url := c.visitorsURL + "/visitors/" + id.String() + "/checkout"
	if err := c.do(ctx, http.MethodPost, url, accessToken, nil, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) Stats(ctx context.Context, accessToken string, days int) (*StatsReport, error) {
	var report StatsReport
	url := c.visitorsURL + "/visitors/stats?days=" + strconv.Itoa(days)
	if err := c.do(ctx, http.MethodGet, url, accessToken, nil, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) History(ctx context.Context, accessToken string, q HistoryQuery) ([]visits.Visitor, error) {
	values, err := query.Values(q)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history query: %w", err)
	}
	url := c.visitorsURL + "/visitors/history"
	if enc := values.Encode(); enc != "" {
		url += "?" + enc
	}

	var list []visits.Visitor
	if err := c.do(ctx, http.MethodGet, url, accessToken, nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

type forwardedForKey struct{}

// WithForwardedFor makes every request issued with the returned context carry
// ip as X-Forwarded-For, so the services see the browser rather than the
// gateway.
func WithForwardedFor(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, forwardedForKey{}, ip)
}

func (c *Client) do(ctx context.Context, method, url, accessToken string, in any, headers map[string]string, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		req.Header.Set("X-Request-ID", requestID)
	}
	if ip, ok := ctx.Value(forwardedForKey{}).(string); ok && ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(b, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(b))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}
