package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/accueilpro/accueilpro/pkg/client"
	"github.com/accueilpro/accueilpro/pkg/logger"
	"github.com/accueilpro/accueilpro/pkg/visits"
)

const liveHeartbeat = 25 * time.Second

func daysParam(q url.Values) int {
	if n, err := strconv.Atoi(q.Get("days")); err == nil && n == visits.ActivityWeekly {
		return n
	}
	return visits.ActivityDaily
}

// DashboardChanges keeps one dashboard view live. It follows the visitor
// change feed with the session's own token and pushes the re-rendered
// statistics and present list as a "dashboard" event after every refetch,
// the first one included.
func (h *Handlers) DashboardChanges(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	p := providerFrom(ctx)
	days, search := daysParam(r.URL.Query()), r.URL.Query().Get("q")

	var (
		mu     sync.Mutex
		latest []visits.Visitor
	)
	updated := make(chan struct{}, 1)

	query := client.NewVisitorQuery(h.client, p.AccessToken)
	defer query.Close()
	query.OnChange(func(list []visits.Visitor) {
		mu.Lock()
		latest = list
		mu.Unlock()
		select {
		case updated <- struct{}{}:
		default:
		}
	})
	if err := query.Start(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to open dashboard feed", "error", err)
		http.Error(w, "Impossible de charger les données", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(liveHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-updated:
			mu.Lock()
			list := latest
			mu.Unlock()

			fragment, err := h.liveFragment(list, days, search)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to render dashboard update", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: dashboard\ndata: %s\n\n", fragment)
			flusher.Flush()
		}
	}
}

// liveFragment renders the live part of the dashboard as a JSON string, which
// keeps the event on a single data line.
func (h *Handlers) liveFragment(list []visits.Visitor, days int, search string) ([]byte, error) {
	now := time.Now().In(h.loc)
	data := dashboardData{
		page:     page{Loc: h.loc},
		Stats:    visits.ComputeStats(list, now),
		Trends:   visits.ComputeTrends(list, now),
		Activity: visits.DailyActivity(list, now, days),
		Days:     days,
		Present:  visits.PresentVisitors(list, search),
		Search:   search,
	}

	var buf bytes.Buffer
	if err := pages["dashboard"].ExecuteTemplate(&buf, "live", data); err != nil {
		return nil, err
	}
	return json.Marshal(buf.String())
}
