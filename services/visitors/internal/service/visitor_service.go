package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/accueilpro/accueilpro/pkg/cache"
	"github.com/accueilpro/accueilpro/pkg/config"
	"github.com/accueilpro/accueilpro/pkg/events"
	"github.com/accueilpro/accueilpro/pkg/logger"
	"github.com/accueilpro/accueilpro/pkg/visits"
	"github.com/accueilpro/accueilpro/services/visitors/internal/domain"
	"github.com/accueilpro/accueilpro/services/visitors/internal/repository"
	"github.com/google/uuid"
)

// The cached list is keyed by a generation that every write bumps, so a read
// that raced a write fills a key nobody looks at anymore.
const listGenerationKey = "visitors:list:gen"

func listCacheKey(gen int64) string {
	return fmt.Sprintf("visitors:list:%d", gen)
}

type VisitorService interface {
	List(ctx context.Context) ([]visits.Visitor, error)
	CheckIn(ctx context.Context, req *domain.CheckInRequest, createdBy *uuid.UUID) (*visits.Visitor, error)
	Checkout(ctx context.Context, id uuid.UUID) (*visits.Visitor, error)
	Stats(ctx context.Context, days int) (*domain.StatsReport, error)
	History(ctx context.Context, filter visits.Filter) ([]visits.Visitor, error)
	// InvalidateList drops the cached list so the next read goes to the database.
	InvalidateList(ctx context.Context)
	Location() *time.Location
}

type Option func(*visitorService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *visitorService) { s.now = now }
}

type visitorService struct {
	repo     repository.VisitorRepository
	cache    cache.Cache
	eventBus events.Publisher
	config   *config.Config
	loc      *time.Location
	now      func() time.Time
}

func NewVisitorService(
	repo repository.VisitorRepository,
	cache cache.Cache,
	eventBus events.Publisher,
	config *config.Config,
	opts ...Option,
) VisitorService {
	s := &visitorService{
		repo:     repo,
		cache:    cache,
		eventBus: eventBus,
		config:   config,
		loc:      config.App.Location(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *visitorService) Location() *time.Location {
	return s.loc
}

func (s *visitorService) List(ctx context.Context) ([]visits.Visitor, error) {
	gen, err := s.listGeneration(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Visitor list generation read failed", "error", err)
		return s.listFromRepo(ctx)
	}

	var list []visits.Visitor
	err = s.cache.GetJSON(ctx, listCacheKey(gen), &list)
	if err == nil {
		return list, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logger.WarnContext(ctx, "Visitor list cache read failed", "error", err)
	}

	list, err = s.listFromRepo(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(ctx, listCacheKey(gen), list, s.config.Redis.ListCacheTTL); err != nil {
		logger.WarnContext(ctx, "Visitor list cache write failed", "error", err)
	}
	return list, nil
}

func (s *visitorService) listFromRepo(ctx context.Context) ([]visits.Visitor, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list visitors: %w", err)
	}
	return list, nil
}

func (s *visitorService) listGeneration(ctx context.Context) (int64, error) {
	var gen int64
	err := s.cache.GetJSON(ctx, listGenerationKey, &gen)
	if errors.Is(err, cache.ErrMiss) {
		return 0, nil
	}
	return gen, err
}

func (s *visitorService) CheckIn(ctx context.Context, req *domain.CheckInRequest, createdBy *uuid.UUID) (*visits.Visitor, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	v, err := s.repo.Create(ctx, req, createdBy)
	if err != nil {
		return nil, fmt.Errorf("failed to check in visitor: %w", err)
	}

	logger.InfoContext(ctx, "Visitor checked in", "visitor_id", v.ID)
	s.changed(ctx, events.ChangeInsert, v.ID)
	return v, nil
}

// Checkout stamps the current time even when the visitor already left; the
// later time wins.
func (s *visitorService) Checkout(ctx context.Context, id uuid.UUID) (*visits.Visitor, error) {
	v, err := s.repo.Checkout(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to check out visitor: %w", err)
	}
	if v == nil {
		return nil, domain.ErrNotFound
	}

	logger.InfoContext(ctx, "Visitor checked out", "visitor_id", v.ID)
	s.changed(ctx, events.ChangeUpdate, v.ID)
	return v, nil
}

func (s *visitorService) Stats(ctx context.Context, days int) (*domain.StatsReport, error) {
	if days != visits.ActivityDaily && days != visits.ActivityWeekly {
		return nil, fmt.Errorf("%w: days must be %d or %d", domain.ErrValidation, visits.ActivityDaily, visits.ActivityWeekly)
	}
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	return &domain.StatsReport{
		Stats:    visits.ComputeStats(list, now),
		Trends:   visits.ComputeTrends(list, now),
		Activity: visits.DailyActivity(list, now, days),
	}, nil
}

func (s *visitorService) History(ctx context.Context, filter visits.Filter) ([]visits.Visitor, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(list, s.loc), nil
}

func (s *visitorService) InvalidateList(ctx context.Context) {
	gen, err := s.cache.Incr(ctx, listGenerationKey, 0)
	if err != nil {
		logger.WarnContext(ctx, "Visitor list cache invalidation failed", "error", err)
		return
	}
	if err := s.cache.Delete(ctx, listCacheKey(gen-1)); err != nil {
		logger.WarnContext(ctx, "Visitor list cache cleanup failed", "error", err)
	}
}

// changed drops the cache and announces the write. Publish failures are
// logged only; the write already happened.
func (s *visitorService) changed(ctx context.Context, changeType string, id uuid.UUID) {
	s.InvalidateList(ctx)

	subject, err := events.SubjectFor(changeType)
	if err != nil {
		logger.ErrorContext(ctx, "Unknown change type", "error", err)
		return
	}
	ev := events.ChangeEvent{
		Type:       changeType,
		Table:      "visitors",
		RecordID:   id.String(),
		OccurredAt: s.now(),
	}
	if err := s.eventBus.Publish(ctx, subject, ev); err != nil {
		logger.ErrorContext(ctx, "Failed to publish visitor change", "error", err, "visitor_id", id)
	}
}
