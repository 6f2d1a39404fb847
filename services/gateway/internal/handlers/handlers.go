package handlers

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/accueilpro/accueilpro/pkg/client"
	"github.com/accueilpro/accueilpro/pkg/config"
	"github.com/accueilpro/accueilpro/pkg/logger"
	mw "github.com/accueilpro/accueilpro/pkg/middleware"
	"github.com/accueilpro/accueilpro/pkg/visits"
	"github.com/accueilpro/accueilpro/services/gateway/internal/proxy"
	"github.com/accueilpro/accueilpro/services/gateway/internal/session"
	"github.com/go-chi/chi/v5"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"date":  func(t any, loc *time.Location) string { return formatTime(t, loc, "02/01/2006") },
	"clock": func(t any, loc *time.Location) string { return formatTime(t, loc, "15:04") },
	"duration": func(v visits.Visitor) string {
		if m, ok := v.DurationMinutes(); ok {
			return visits.FormatDuration(m)
		}
		return "-"
	},
	"minutes": visits.FormatDuration,
	"idLabel": func(t visits.IDType) string { return t.Label() },
	"signed": func(n int) string {
		if n > 0 {
			return fmt.Sprintf("+%d", n)
		}
		return fmt.Sprint(n)
	},
	"growthClass": func(n int) string {
		switch {
		case n > 0:
			return "up"
		case n < 0:
			return "down"
		}
		return "flat"
	},
}

var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{"splash", "login", "dashboard", "history", "notfound"} {
		pages[name] = template.Must(template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html"))
	}
}

func formatTime(t any, loc *time.Location, layout string) string {
	switch v := t.(type) {
	case time.Time:
		return v.In(loc).Format(layout)
	case *time.Time:
		if v != nil {
			return v.In(loc).Format(layout)
		}
	}
	return ""
}

// page carries what the layout needs on every screen.
type page struct {
	Title   string
	User    *client.UserInfo
	Profile *client.Profile
	Notice  string
	Error   string
	Loc     *time.Location
}

type Handlers struct {
	client        *client.Client
	sessions      *session.Store
	authProxy     *proxy.ServiceProxy
	visitorsProxy *proxy.ServiceProxy
	config        *config.Config
	loc           *time.Location
}

func New(c *client.Client, sessions *session.Store, authProxy, visitorsProxy *proxy.ServiceProxy, cfg *config.Config) *Handlers {
	return &Handlers{
		client:        c,
		sessions:      sessions,
		authProxy:     authProxy,
		visitorsProxy: visitorsProxy,
		config:        cfg,
		loc:           cfg.App.Location(),
	}
}

// Routes mounts the web pages and the /v1 API proxy.
func (h *Handlers) Routes(r chi.Router) {
	r.Use(forwardClientIP)

	r.Get("/", h.Splash)
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)
		r.Get("/dashboard", h.Dashboard)
		r.Get("/dashboard/changes", h.DashboardChanges)
		r.Post("/dashboard/visitors", h.CheckIn)
		r.Post("/dashboard/visitors/{id}/checkout", h.Checkout)
		r.Get("/history", h.History)
	})

	r.Route("/v1", func(r chi.Router) {
		r.HandleFunc("/auth/*", h.ProxyAuth)
		r.HandleFunc("/visitors", h.ProxyVisitors)
		r.HandleFunc("/visitors/*", h.ProxyVisitors)
	})

	r.NotFound(h.NotFound)
}

// forwardClientIP tags service calls made for this request with the
// browser's address, which the auth service rate limits on.
func forwardClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := client.WithForwardedFor(r.Context(), mw.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.ErrorContext(r.Context(), "Failed to render page", "page", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handlers) page(title string, p *client.SessionProvider) page {
	pg := page{Title: title, Loc: h.loc}
	if p != nil {
		st := p.State()
		pg.User, pg.Profile = st.User, st.Profile
	}
	return pg
}

// ---------- Session ----------

type providerKey struct{}

func providerFrom(ctx context.Context) *client.SessionProvider {
	p, _ := ctx.Value(providerKey{}).(*client.SessionProvider)
	return p
}

// restore rebuilds the provider for the browser's cookie. It returns nil
// when there is no usable session.
func (h *Handlers) restore(r *http.Request) *client.SessionProvider {
	cookie, err := r.Cookie(h.config.App.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	p := client.NewSessionProvider(h.client, h.sessions.For(cookie.Value))
	if err := p.Init(r.Context()); err != nil {
		logger.WarnContext(r.Context(), "Failed to restore session", "error", err)
	}
	if !p.State().SignedIn() {
		p.Close()
		return nil
	}
	return p
}

// RequireSession gates the pages behind a signed-in session and sends
// everyone else to the login page.
func (h *Handlers) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := h.restore(r)
		if p == nil {
			h.clearCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		defer p.Close()

		ctx := context.WithValue(r.Context(), providerKey{}, p)
		if u := p.State().User; u != nil {
			ctx = context.WithValue(ctx, logger.UserIDKey, u.ID.String())
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handlers) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.App.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.config.Auth.RefreshTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   h.config.App.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.App.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.App.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// ---------- Errors ----------

// errorMessage shows client errors as the service worded them and hides
// everything else behind a generic notice.
func errorMessage(err error, fallback string) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func errorStatus(err error) int {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

var notices = map[string]string{
	"signed-in":   "Connexion réussie. Bienvenue sur AccueilPro Digital.",
	"signed-up":   "Inscription réussie. Bienvenue sur AccueilPro Digital.",
	"signed-out":  "Vous avez été déconnecté avec succès.",
	"checked-in":  "Le visiteur a été enregistré avec succès",
	"checked-out": "Le départ du visiteur a été enregistré",
}

var failures = map[string]string{
	"checkout": "Une erreur est survenue lors de l'enregistrement du départ",
	"signout":  "Une erreur est survenue lors de la déconnexion.",
}

func noticeFrom(r *http.Request) (notice, failure string) {
	q := r.URL.Query()
	return notices[q.Get("notice")], failures[strings.TrimSpace(q.Get("error"))]
}
