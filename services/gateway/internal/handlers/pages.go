package handlers

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/accueilpro/accueilpro/pkg/client"
	"github.com/accueilpro/accueilpro/pkg/logger"
	"github.com/accueilpro/accueilpro/pkg/visits"
	"github.com/accueilpro/accueilpro/services/gateway/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func (h *Handlers) Splash(w http.ResponseWriter, r *http.Request) {
	delay := int(math.Ceil(h.config.App.SplashDelay.Seconds()))
	h.render(w, r, http.StatusOK, "splash", struct {
		page
		Delay int
	}{page: h.page("Bienvenue", nil), Delay: delay})
}

type loginData struct {
	page
	SignUp   bool
	Email    string
	FullName string
}

func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if p := h.restore(r); p != nil {
		p.Close()
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	data := loginData{page: h.page("Connexion", nil), SignUp: r.URL.Query().Get("mode") == "signup"}
	data.Notice, data.Error = noticeFrom(r)
	h.render(w, r, http.StatusOK, "login", data)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	signUp := r.PostForm.Get("mode") == "signup"
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	fullName := strings.TrimSpace(r.PostForm.Get("full_name"))

	id := session.NewID()
	p := client.NewSessionProvider(h.client, h.sessions.For(id))
	defer p.Close()

	var err error
	if signUp {
		err = p.SignUp(r.Context(), email, password, client.SignUpOptions{FullName: fullName})
	} else {
		err = p.SignIn(r.Context(), email, password)
	}
	if err != nil {
		logger.InfoContext(r.Context(), "Sign-in attempt failed", "email", email, "sign_up", signUp, "error", err)

		data := loginData{page: h.page("Connexion", nil), SignUp: signUp, Email: email, FullName: fullName}
		if signUp {
			data.Error = "Erreur d'inscription : " + errorMessage(err, "L'inscription a échoué.")
		} else {
			data.Error = "Erreur de connexion : " + errorMessage(err, "Veuillez vérifier vos identifiants.")
		}
		h.render(w, r, errorStatus(err), "login", data)
		return
	}

	h.setCookie(w, id)
	notice := "signed-in"
	if signUp {
		notice = "signed-up"
	}
	http.Redirect(w, r, "/dashboard?notice="+notice, http.StatusSeeOther)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	target := "/login?notice=signed-out"
	if p := h.restore(r); p != nil {
		if err := p.SignOut(r.Context()); err != nil {
			logger.WarnContext(r.Context(), "Sign-out failed", "error", err)
			target = "/login?error=signout"
		}
		p.Close()
	}
	h.clearCookie(w)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// ---------- Dashboard ----------

type checkInForm struct {
	FormID        string
	FirstName     string
	LastName      string
	Phone         string
	IDType        string
	IDNumber      string
	Photo         string
	VisitPurpose  string
	PersonToVisit string
}

func newCheckInForm() checkInForm {
	return checkInForm{FormID: uuid.NewString(), IDType: string(visits.IDNationalID)}
}

func (f checkInForm) request() client.CheckIn {
	in := client.CheckIn{
		FirstName:     f.FirstName,
		LastName:      f.LastName,
		Phone:         f.Phone,
		IDType:        visits.IDType(f.IDType),
		IDNumber:      f.IDNumber,
		VisitPurpose:  f.VisitPurpose,
		PersonToVisit: f.PersonToVisit,
	}
	if f.Photo != "" {
		photo := f.Photo
		in.Photo = &photo
	}
	return in
}

type dashboardData struct {
	page
	Stats    visits.DashboardStats
	Trends   visits.Trends
	Activity []visits.DayActivity
	Days     int
	Present  []visits.Visitor
	Search   string
	Form     checkInForm
	IDTypes  []visits.IDType
}

func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := h.dashboard(r, newCheckInForm())
	data.Notice, data.Error = noticeFrom(r)
	h.renderDashboard(w, r, http.StatusOK, data)
}

func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	f := r.PostForm
	form := checkInForm{
		FormID:        f.Get("form_id"),
		FirstName:     strings.TrimSpace(f.Get("first_name")),
		LastName:      strings.TrimSpace(f.Get("last_name")),
		Phone:         strings.TrimSpace(f.Get("phone")),
		IDType:        f.Get("id_type"),
		IDNumber:      strings.TrimSpace(f.Get("id_number")),
		Photo:         strings.TrimSpace(f.Get("photo")),
		VisitPurpose:  strings.TrimSpace(f.Get("visit_purpose")),
		PersonToVisit: strings.TrimSpace(f.Get("person_to_visit")),
	}

	p := providerFrom(r.Context())
	v, err := h.client.CheckIn(r.Context(), p.AccessToken(), form.request(), form.FormID)
	if err != nil {
		logger.WarnContext(r.Context(), "Check-in failed", "error", err)
		// keep what was typed; same form id so a resubmit stays idempotent
		data := h.dashboard(r, form)
		data.Error = "Erreur : " + errorMessage(err, "Une erreur est survenue")
		h.renderDashboard(w, r, errorStatus(err), data)
		return
	}

	logger.InfoContext(r.Context(), "Visitor checked in from dashboard", "visitor_id", v.ID)
	http.Redirect(w, r, "/dashboard?notice=checked-in", http.StatusSeeOther)
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Redirect(w, r, "/dashboard?error=checkout", http.StatusSeeOther)
		return
	}

	p := providerFrom(r.Context())
	if _, err := h.client.Checkout(r.Context(), p.AccessToken(), id); err != nil {
		logger.WarnContext(r.Context(), "Checkout failed", "visitor_id", id, "error", err)
		http.Redirect(w, r, "/dashboard?error=checkout", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/dashboard?notice=checked-out", http.StatusSeeOther)
}

// dashboard fetches the list and the statistics side by side. A failed
// fetch leaves the sections empty and sets the error notice.
func (h *Handlers) dashboard(r *http.Request, form checkInForm) dashboardData {
	p := providerFrom(r.Context())
	q := r.URL.Query()

	days := daysParam(q)
	data := dashboardData{
		page:    h.page("Tableau de bord", p),
		Days:    days,
		Search:  q.Get("q"),
		Form:    form,
		IDTypes: visits.IDTypes,
	}

	token := p.AccessToken()
	var (
		list   []visits.Visitor
		report *client.StatsReport
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		list, err = h.client.ListVisitors(ctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		report, err = h.client.Stats(ctx, token, days)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.ErrorContext(r.Context(), "Failed to load dashboard", "error", err)
		data.Error = "Impossible de charger les données"
		return data
	}

	data.Stats, data.Trends, data.Activity = report.Stats, report.Trends, report.Activity
	data.Present = visits.PresentVisitors(list, data.Search)
	return data
}

func (h *Handlers) renderDashboard(w http.ResponseWriter, r *http.Request, status int, data dashboardData) {
	h.render(w, r, status, "dashboard", data)
}

// ---------- History ----------

type historyData struct {
	page
	Visitors []visits.Visitor
	Search   string
	Status   string
	Date     string
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	p := providerFrom(r.Context())
	q := r.URL.Query()

	data := historyData{page: h.page("Historique", p), Search: q.Get("q"), Date: q.Get("date")}

	status, err := visits.ParseStatus(q.Get("status"))
	if err != nil {
		data.Status = string(visits.StatusAll)
		data.Error = "Filtre inconnu"
		h.render(w, r, http.StatusBadRequest, "history", data)
		return
	}
	data.Status = string(status)
	if data.Date != "" {
		if _, err := time.ParseInLocation(time.DateOnly, data.Date, h.loc); err != nil {
			data.Error = "Date invalide"
			h.render(w, r, http.StatusBadRequest, "history", data)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	list, err := h.client.History(ctx, p.AccessToken(), client.HistoryQuery{
		Search: data.Search,
		Status: status,
		Date:   data.Date,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load history", "error", err)
		data.Error = "Impossible de charger les données"
		h.render(w, r, http.StatusBadGateway, "history", data)
		return
	}
	data.Visitors = list
	h.render(w, r, http.StatusOK, "history", data)
}

func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	logger.WarnContext(r.Context(), "Route not found", "path", r.URL.Path)
	h.render(w, r, http.StatusNotFound, "notfound", h.page("Page introuvable", nil))
}
