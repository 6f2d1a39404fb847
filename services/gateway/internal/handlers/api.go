package handlers

import (
	"net/http"
	"strings"
)

// ProxyAuth forwards /v1/auth/* to the auth service with the prefix removed.
func (h *Handlers) ProxyAuth(w http.ResponseWriter, r *http.Request) {
	h.authProxy.Forward(w, r, strings.TrimPrefix(r.URL.Path, "/v1/auth"))
}

// ProxyVisitors forwards /v1/visitors... to the visitors service, change
// stream included.
func (h *Handlers) ProxyVisitors(w http.ResponseWriter, r *http.Request) {
	h.visitorsProxy.Forward(w, r, strings.TrimPrefix(r.URL.Path, "/v1"))
}
