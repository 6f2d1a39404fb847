package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/accueilpro/accueilpro/pkg/config"
	"github.com/accueilpro/accueilpro/pkg/logger"
	mw "github.com/accueilpro/accueilpro/pkg/middleware"
	"github.com/accueilpro/accueilpro/pkg/response"
	"github.com/accueilpro/accueilpro/services/auth/internal/domain"
	"github.com/accueilpro/accueilpro/services/auth/internal/service"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	authService service.AuthService
	signInLimit *mw.RateLimiter
	config      *config.Config
}

func New(authService service.AuthService, signInLimit *mw.RateLimiter, config *config.Config) *Handlers {
	return &Handlers{
		authService: authService,
		signInLimit: signInLimit,
		config:      config,
	}
}

// Routes mounts the auth API.
func (h *Handlers) Routes(r chi.Router) {
	r.With(h.signInLimit.Middleware()).Post("/login", h.SignIn)
	r.With(h.signInLimit.Middleware()).Post("/signup", h.SignUp)
	r.Post("/logout", h.SignOut)
	r.Post("/refresh", h.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireJWT(h.config.Auth.JWTSecret))
		r.Get("/session", h.Session)
		r.Get("/profiles/{id}", h.GetProfile)
	})
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps domain errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		response.WriteError(w, http.StatusConflict, err.Error(), response.CodeEmailExists)
	case errors.Is(err, domain.ErrInvalidToken):
		response.InvalidToken(w, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, err.Error())
	default:
		logger.ErrorContext(r.Context(), "Auth request failed", "error", err)
		response.InternalError(w, "internal error")
	}
}
