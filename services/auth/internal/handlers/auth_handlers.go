package handlers

import (
	"net/http"

	mw "github.com/accueilpro/accueilpro/pkg/middleware"
	"github.com/accueilpro/accueilpro/pkg/response"
	"github.com/accueilpro/accueilpro/services/auth/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req domain.SignUpRequest
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	sess, err := h.authService.SignUp(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, sess)
}

func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req domain.SignInRequest
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	sess, err := h.authService.SignIn(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if err := decode(r, &req); err != nil || req.RefreshToken == "" {
		response.BadRequest(w, "refresh_token is required")
		return
	}

	if err := h.authService.SignOut(r.Context(), req.RefreshToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if err := decode(r, &req); err != nil || req.RefreshToken == "" {
		response.BadRequest(w, "refresh_token is required")
		return
	}

	sess, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	userID, err := mw.Claims(r).UserID()
	if err != nil {
		response.InvalidToken(w, "invalid subject")
		return
	}

	info, err := h.authService.Session(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, info)
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid profile id")
		return
	}

	profile, err := h.authService.Profile(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, profile)
}
