package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/accueilpro/accueilpro/pkg/cache"
	"github.com/accueilpro/accueilpro/pkg/config"
	"github.com/accueilpro/accueilpro/pkg/events"
	"github.com/accueilpro/accueilpro/pkg/visits"
	"github.com/accueilpro/accueilpro/services/visitors/internal/domain"
	"github.com/google/uuid"
)

// ---------- Mocks ----------

type mockVisitorRepo struct {
	mu        sync.Mutex
	visitors  []visits.Visitor
	now       func() time.Time
	listCalls int
	// afterSnapshot, when set, runs once List has copied the rows.
	afterSnapshot func()
}

func (m *mockVisitorRepo) Create(_ context.Context, req *domain.CheckInRequest, createdBy *uuid.UUID) (*visits.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := visits.Visitor{
		ID:            uuid.New(),
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Phone:         req.Phone,
		IDType:        req.IDType,
		IDNumber:      req.IDNumber,
		Photo:         req.Photo,
		VisitPurpose:  req.VisitPurpose,
		PersonToVisit: req.PersonToVisit,
		CheckInTime:   m.now(),
		CreatedBy:     createdBy,
	}
	m.visitors = append(m.visitors, v)
	return &v, nil
}

func (m *mockVisitorRepo) Checkout(_ context.Context, id uuid.UUID, at time.Time) (*visits.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.visitors {
		if m.visitors[i].ID == id {
			if at.Before(m.visitors[i].CheckInTime) {
				at = m.visitors[i].CheckInTime
			}
			m.visitors[i].CheckOutTime = &at
			m.visitors[i].IsCheckedOut = true
			v := m.visitors[i]
			return &v, nil
		}
	}
	return nil, nil
}

func (m *mockVisitorRepo) List(context.Context) ([]visits.Visitor, error) {
	m.mu.Lock()
	m.listCalls++
	out := append([]visits.Visitor(nil), m.visitors...)
	hook := m.afterSnapshot
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	visits.SortByCheckIn(out)
	return out, nil
}

type mockBus struct {
	mu        sync.Mutex
	published []string
}

func (m *mockBus) Publish(_ context.Context, subject string, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, subject)
	return nil
}

func (m *mockBus) Close() error { return nil }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func setup() (VisitorService, *mockVisitorRepo, *mockBus, *clock) {
	clk := &clock{t: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)}
	repo := &mockVisitorRepo{now: clk.Now}
	bus := &mockBus{}
	cfg := &config.Config{
		Redis: config.RedisConfig{ListCacheTTL: time.Minute},
		App:   config.AppConfig{TimeZone: "UTC"},
	}
	svc := NewVisitorService(repo, cache.NewMemory(), bus, cfg, WithClock(clk.Now))
	return svc, repo, bus, clk
}

func checkInRequest(first string) *domain.CheckInRequest {
	return &domain.CheckInRequest{
		FirstName:     first,
		LastName:      "Martin",
		Phone:         "0600000000",
		IDType:        visits.IDPassport,
		IDNumber:      "P1",
		VisitPurpose:  "Livraison",
		PersonToVisit: "Accueil",
	}
}

// ---------- Tests ----------

func TestCheckInPublishesAndInvalidatesCache(t *testing.T) {
	svc, repo, bus, _ := setup()
	ctx := context.Background()

	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.listCalls != 1 {
		t.Fatalf("repo list calls = %d, want 1 (second read cached)", repo.listCalls)
	}

	user := uuid.New()
	v, err := svc.CheckIn(ctx, checkInRequest("Alice"), &user)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if v.IsCheckedOut || v.CreatedBy == nil || *v.CreatedBy != user {
		t.Errorf("got %+v", v)
	}

	list, _ := svc.List(ctx)
	if repo.listCalls != 2 || len(list) != 1 {
		t.Errorf("after write: list calls %d, len %d; want 2, 1", repo.listCalls, len(list))
	}
	if len(bus.published) != 1 || bus.published[0] != events.VisitorsInserted {
		t.Errorf("published %v, want [%s]", bus.published, events.VisitorsInserted)
	}
}

func TestCheckInValidationFailsBeforeWrite(t *testing.T) {
	svc, repo, bus, _ := setup()
	req := checkInRequest("  ")
	_, err := svc.CheckIn(context.Background(), req, nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	if len(repo.visitors) != 0 || len(bus.published) != 0 {
		t.Error("nothing should be written or published")
	}
}

func TestRepeatedCheckoutOverwritesWithLaterTime(t *testing.T) {
	svc, _, bus, clk := setup()
	ctx := context.Background()

	v, _ := svc.CheckIn(ctx, checkInRequest("Alice"), nil)

	clk.Advance(30 * time.Minute)
	first, err := svc.Checkout(ctx, v.ID)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	clk.Advance(5 * time.Minute)
	second, err := svc.Checkout(ctx, v.ID)
	if err != nil {
		t.Fatalf("second Checkout: %v", err)
	}

	if !second.CheckOutTime.After(*first.CheckOutTime) {
		t.Errorf("second checkout %v not after first %v", second.CheckOutTime, first.CheckOutTime)
	}
	if m, _ := second.DurationMinutes(); m != 35 {
		t.Errorf("duration = %d, want 35", m)
	}
	if got := len(bus.published); got != 3 {
		t.Errorf("published %d events, want 3", got)
	}
}

func TestCheckoutUnknownID(t *testing.T) {
	svc, _, _, _ := setup()
	_, err := svc.Checkout(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestStatsAndHistory(t *testing.T) {
	svc, _, _, clk := setup()
	ctx := context.Background()

	a, _ := svc.CheckIn(ctx, checkInRequest("Alice"), nil)
	clk.Advance(10 * time.Minute)
	_, _ = svc.CheckIn(ctx, checkInRequest("Bruno"), nil)
	clk.Advance(50 * time.Minute)
	_, _ = svc.Checkout(ctx, a.ID)

	report, err := svc.Stats(ctx, visits.ActivityDaily)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if report.Stats.CurrentVisitors != 1 || report.Stats.TodayVisitors != 2 {
		t.Errorf("stats = %+v", report.Stats)
	}
	if report.Trends.AverageDuration != 60 {
		t.Errorf("average = %d, want 60", report.Trends.AverageDuration)
	}
	if len(report.Activity) != 7 || report.Activity[6].CheckIns != 2 || report.Activity[6].CheckOuts != 1 {
		t.Errorf("activity today = %+v", report.Activity)
	}

	if _, err := svc.Stats(ctx, 30); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("days=30 got %v, want ErrValidation", err)
	}

	active, _ := svc.History(ctx, visits.Filter{Search: "alice", Status: visits.StatusActive})
	if len(active) != 0 {
		t.Errorf("checked-out Alice must not be active, got %d", len(active))
	}
	done, _ := svc.History(ctx, visits.Filter{Search: "alice", Status: visits.StatusCompleted})
	if len(done) != 1 {
		t.Errorf("completed Alice: got %d, want 1", len(done))
	}
}

func TestListIgnoresFillThatRacedAWrite(t *testing.T) {
	svc, repo, _, clk := setup()
	ctx := context.Background()

	v, _ := svc.CheckIn(ctx, checkInRequest("Alice"), nil)

	snapshotted := make(chan struct{})
	release := make(chan struct{})
	repo.mu.Lock()
	repo.afterSnapshot = func() {
		close(snapshotted)
		<-release
	}
	repo.mu.Unlock()

	done := make(chan []visits.Visitor)
	go func() {
		list, _ := svc.List(ctx)
		done <- list
	}()

	<-snapshotted
	repo.mu.Lock()
	repo.afterSnapshot = nil
	repo.mu.Unlock()

	clk.Advance(20 * time.Minute)
	if _, err := svc.Checkout(ctx, v.ID); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	svc.InvalidateList(ctx)

	close(release)
	if stale := <-done; len(stale) != 1 || stale[0].IsCheckedOut {
		t.Fatalf("racing read should see the old row, got %+v", stale)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || !list[0].IsCheckedOut {
		t.Errorf("list after checkout = %+v, want Alice checked out", list)
	}

	// the fresh read is cached under the current generation
	calls := repo.listCalls
	_, _ = svc.List(ctx)
	if repo.listCalls != calls {
		t.Errorf("repo list calls = %d, want %d", repo.listCalls, calls)
	}
}
