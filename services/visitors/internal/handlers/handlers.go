package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/accueilpro/accueilpro/pkg/cache"
	"github.com/accueilpro/accueilpro/pkg/config"
	"github.com/accueilpro/accueilpro/pkg/logger"
	mw "github.com/accueilpro/accueilpro/pkg/middleware"
	"github.com/accueilpro/accueilpro/pkg/response"
	"github.com/accueilpro/accueilpro/services/visitors/internal/domain"
	"github.com/accueilpro/accueilpro/services/visitors/internal/realtime"
	"github.com/accueilpro/accueilpro/services/visitors/internal/service"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	visitorService service.VisitorService
	hub            *realtime.Hub
	idempotency    cache.Cache
	config         *config.Config
}

func New(visitorService service.VisitorService, hub *realtime.Hub, idempotency cache.Cache, config *config.Config) *Handlers {
	return &Handlers{
		visitorService: visitorService,
		hub:            hub,
		idempotency:    idempotency,
		config:         config,
	}
}

// Routes mounts the visitor API; every route needs an access token.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/visitors", func(r chi.Router) {
		r.Use(mw.RequireJWT(h.config.Auth.JWTSecret))

		r.Get("/", h.ListVisitors)
		r.With(mw.Idempotency(h.idempotency)).Post("/", h.CheckIn)
		r.Post("/{id}/checkout", h.Checkout)
		r.Get("/stats", h.Stats)
		r.Get("/history", h.History)
		r.Get("/changes", h.Changes)
	})
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, err.Error())
	default:
		logger.ErrorContext(r.Context(), "Visitor request failed", "error", err)
		response.InternalError(w, "internal error")
	}
}
