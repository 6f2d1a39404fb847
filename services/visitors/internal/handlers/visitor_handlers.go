package handlers

import (
	"net/http"
	"strconv"
	"time"

	mw "github.com/accueilpro/accueilpro/pkg/middleware"
	"github.com/accueilpro/accueilpro/pkg/response"
	"github.com/accueilpro/accueilpro/pkg/visits"
	"github.com/accueilpro/accueilpro/services/visitors/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (h *Handlers) ListVisitors(w http.ResponseWriter, r *http.Request) {
	list, err := h.visitorService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, list)
}

func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckInRequest
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	var createdBy *uuid.UUID
	if id, err := mw.Claims(r).UserID(); err == nil {
		createdBy = &id
	}

	v, err := h.visitorService.CheckIn(r.Context(), &req, createdBy)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid visitor id")
		return
	}

	v, err := h.visitorService.Checkout(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, v)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	days := visits.ActivityDaily
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.BadRequest(w, "days must be a number")
			return
		}
		days = n
	}

	report, err := h.visitorService.Stats(r.Context(), days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, report)
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status, err := visits.ParseStatus(q.Get("status"))
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	filter := visits.Filter{Search: q.Get("q"), Status: status}

	if d := q.Get("date"); d != "" {
		day, err := time.ParseInLocation(time.DateOnly, d, h.visitorService.Location())
		if err != nil {
			response.BadRequest(w, "date must be YYYY-MM-DD")
			return
		}
		filter.Date = &day
	}

	list, err := h.visitorService.History(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, list)
}
