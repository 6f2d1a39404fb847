package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/accueilpro/accueilpro/pkg/logger"
	mw "github.com/accueilpro/accueilpro/pkg/middleware"
)

type ServiceProxy struct {
	baseURL string
	client  *http.Client
	stream  *http.Client
}

func NewServiceProxy(baseURL string) *ServiceProxy {
	return &ServiceProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		// event streams have no deadline of their own
		stream: &http.Client{},
	}
}

func (p *ServiceProxy) ProxyRequest(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*http.Response, error) {
	url := p.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range headers {
		if shouldCopyHeader(key) {
			req.Header[key] = values
		}
	}

	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		req.Header.Set("X-Request-ID", requestID)
	}
	req.Header.Set("X-Gateway-Forwarded", "true")
	req.Header.Set("X-Gateway-Service", "accueilpro-gateway")

	logger.DebugContext(ctx, "Proxying request", "method", method, "url", url)

	client := p.client
	if strings.Contains(headers.Get("Accept"), "text/event-stream") {
		client = p.stream
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// Forward relays r to path on the service and copies the answer back,
// flushing as it goes so event streams reach the browser unbuffered.
func (p *ServiceProxy) Forward(w http.ResponseWriter, r *http.Request, path string) {
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	headers := r.Header.Clone()
	for _, key := range forwardingHeaders {
		headers.Del(key)
	}
	if ip := mw.ClientIP(r); ip != "" {
		headers.Set("X-Forwarded-For", ip)
	}

	resp, err := p.ProxyRequest(r.Context(), r.Method, path, r.Body, headers)
	if err != nil {
		logger.ErrorContext(r.Context(), "Service proxy error", "error", err, "path", path)
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if shouldCopyHeader(key) {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
	}
	w.WriteHeader(resp.StatusCode)

	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 32<<10)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF && r.Context().Err() == nil {
				logger.ErrorContext(r.Context(), "Failed to copy response body", "error", err)
			}
			return
		}
	}
}

// Replaced on the way in; the services trust them from the gateway only.
var forwardingHeaders = []string{"X-Forwarded-For", "X-Real-IP", "True-Client-IP"}

// hop-by-hop headers plus CORS, which the gateway answers itself
var skipHeaders = map[string]bool{
	"connection":                       true,
	"upgrade":                          true,
	"proxy-connection":                 true,
	"proxy-authenticate":               true,
	"proxy-authorization":              true,
	"te":                               true,
	"trailers":                         true,
	"transfer-encoding":                true,
	"keep-alive":                       true,
	"host":                             true,
	"content-length":                   true,
	"access-control-allow-origin":      true,
	"access-control-allow-credentials": true,
	"vary":                             true,
}

func shouldCopyHeader(key string) bool {
	return !skipHeaders[strings.ToLower(key)]
}
