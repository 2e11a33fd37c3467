package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/valtrion/allocd/internal/core/domain"
	"github.com/valtrion/allocd/internal/core/ports"
	"github.com/valtrion/allocd/internal/obs"
	"github.com/valtrion/allocd/internal/platform/clock"
)

const (
	unitsVacantCacheKey = "units:vacant"
	statsCacheKey       = "stats:summary"

	unitsCacheTTL = 30 * time.Second
	statsCacheTTL = 60 * time.Second

	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

type AllocationService struct {
	unitRepo    ports.UnitRepository
	requestRepo ports.RequestRepository
	allocRepo   ports.AllocationRepository
	auditRepo   ports.AuditRepository
	redisClient *redis.Client
	clock       clock.Clock
	logger      *obs.Logger
	metrics     *obs.Metrics
}

func NewAllocationService(
	unitRepo ports.UnitRepository,
	requestRepo ports.RequestRepository,
	allocRepo ports.AllocationRepository,
	auditRepo ports.AuditRepository,
	redisClient *redis.Client,
	clk clock.Clock,
	logger *obs.Logger,
	metrics *obs.Metrics,
) *AllocationService {
	if logger == nil {
		logger = obs.NewLogger()
	}
	return &AllocationService{
		unitRepo:    unitRepo,
		requestRepo: requestRepo,
		allocRepo:   allocRepo,
		auditRepo:   auditRepo,
		redisClient: redisClient,
		clock:       clk,
		logger:      logger,
		metrics:     metrics,
	}
}

type AppliedAllocation struct {
	AllocationID string    `json:"allocation_id"`
	RequestID    string    `json:"request_id"`
	UnitID       string    `json:"unit_id"`
	AllocatedAt  time.Time `json:"allocated_at"`
}

type SkippedPair struct {
	RequestID string `json:"request_id"`
	UnitID    string `json:"unit_id"`
	Reason    string `json:"reason"`
}

// BatchResult reports one batch run. Applied + Skipped + Unmatched always sums
// to Requested: every pending request is accounted for exactly once.
type BatchResult struct {
	Applied   []AppliedAllocation `json:"applied"`
	Skipped   []SkippedPair       `json:"skipped"`
	Unmatched int                 `json:"unmatched"`
	Requested int                 `json:"requested"`
}

// RunBatch takes a fresh snapshot, matches it and applies each proposed pair in
// priority order. Conflicts are recovered locally: a pair lost to a concurrent
// writer is reported in Skipped and the batch moves on. Store failures abort
// the remainder of the batch; allocations already applied stay valid because
// each apply commits independently.
func (s *AllocationService) RunBatch(ctx context.Context, actorID string) (*BatchResult, error) {
	start := time.Now()
	if actorID == "" {
		actorID = domain.ActorSystem
	}

	// The matcher snapshot always comes straight from the store, never from
	// the cache: proposals computed from stale data would only inflate the
	// conflict count.
	pending, err := s.requestRepo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	vacant, err := s.unitRepo.ListByStatus(ctx, domain.UnitVacant)
	if err != nil {
		return nil, fmt.Errorf("list vacant units: %w", err)
	}

	matched := Match(pending, vacant)

	batch := &BatchResult{
		Applied:   []AppliedAllocation{},
		Skipped:   []SkippedPair{},
		Unmatched: len(matched.Unmatched),
		Requested: len(pending),
	}

	for _, pair := range matched.Pairs {
		// A batch may be cancelled between applies but never inside one: the
		// four-effect write is a single database transaction.
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		alloc, err := s.allocRepo.Apply(ctx, pair, actorID, s.clock.Now())
		if errors.Is(err, domain.ErrConflict) {
			s.metrics.RecordApply("conflict")
			batch.Skipped = append(batch.Skipped, SkippedPair{
				RequestID: pair.Request.ID.String(),
				UnitID:    pair.Unit.ID.String(),
				Reason:    "conflict",
			})
			continue
		}
		if err != nil {
			s.metrics.RecordApply("error")
			return batch, fmt.Errorf("apply allocation: %w", err)
		}

		s.metrics.RecordApply("applied")
		batch.Applied = append(batch.Applied, AppliedAllocation{
			AllocationID: alloc.ID.String(),
			RequestID:    alloc.RequestID.String(),
			UnitID:       alloc.UnitID.String(),
			AllocatedAt:  alloc.AllocatedAt,
		})
	}

	if len(batch.Applied) > 0 {
		s.invalidateSnapshots(ctx)
	}

	s.metrics.RecordBatch(float64(time.Since(start).Milliseconds()), len(vacant)-len(batch.Applied), len(pending)-len(batch.Applied))
	s.logger.Info(map[string]interface{}{
		"event":     "batch_run",
		"actor":     actorID,
		"requested": batch.Requested,
		"applied":   len(batch.Applied),
		"skipped":   len(batch.Skipped),
		"unmatched": batch.Unmatched,
	})

	return batch, nil
}

// Release vacates an active allocation: allocation to vacated, unit back to
// vacant, one audit event, atomically. A second release of the same id fails
// with domain.ErrAlreadyReleased and writes nothing.
func (s *AllocationService) Release(ctx context.Context, allocationID string, actorID string) (*domain.Allocation, error) {
	id, err := uuid.Parse(allocationID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	if actorID == "" {
		actorID = domain.ActorSystem
	}

	alloc, err := s.allocRepo.Release(ctx, id, actorID, s.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyReleased):
			s.metrics.RecordRelease("already_released")
		case errors.Is(err, domain.ErrAllocationNotFound):
			s.metrics.RecordRelease("not_found")
		default:
			s.metrics.RecordRelease("error")
		}
		return nil, err
	}

	s.metrics.RecordRelease("released")
	s.invalidateSnapshots(ctx)
	s.logger.Info(map[string]interface{}{
		"event":         "release",
		"actor":         actorID,
		"allocation_id": alloc.ID.String(),
		"unit_id":       alloc.UnitID.String(),
	})

	return alloc, nil
}

type UnitView struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// ListUnits returns units filtered by status. The vacant listing is the hot
// read path for operators, so it is served from Redis when fresh.
func (s *AllocationService) ListUnits(ctx context.Context, status domain.UnitStatus) ([]UnitView, error) {
	if status == domain.UnitVacant {
		if cached, ok := s.cachedUnits(ctx); ok {
			return cached, nil
		}
	}

	units, err := s.unitRepo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}

	views := make([]UnitView, 0, len(units))
	for _, u := range units {
		views = append(views, UnitView{ID: u.ID.String(), Type: u.Type, Status: string(u.Status)})
	}

	if status == domain.UnitVacant {
		s.cacheUnits(ctx, views)
	}
	return views, nil
}

func (s *AllocationService) cachedUnits(ctx context.Context) ([]UnitView, bool) {
	if s.redisClient == nil {
		return nil, false
	}
	raw, err := s.redisClient.Get(ctx, unitsVacantCacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Error(map[string]interface{}{"event": "cache_get_failed", "key": unitsVacantCacheKey, "err": err.Error()})
		}
		return nil, false
	}
	var views []UnitView
	if err := json.Unmarshal([]byte(raw), &views); err != nil {
		return nil, false
	}
	return views, true
}

func (s *AllocationService) cacheUnits(ctx context.Context, views []UnitView) {
	if s.redisClient == nil {
		return
	}
	payload, err := json.Marshal(views)
	if err != nil {
		return
	}
	if err := s.redisClient.Set(ctx, unitsVacantCacheKey, payload, unitsCacheTTL).Err(); err != nil {
		s.logger.Error(map[string]interface{}{"event": "cache_set_failed", "key": unitsVacantCacheKey, "err": err.Error()})
	}
}

func (s *AllocationService) invalidateSnapshots(ctx context.Context) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Del(ctx, unitsVacantCacheKey, statsCacheKey).Err(); err != nil {
		s.logger.Error(map[string]interface{}{"event": "cache_invalidate_failed", "err": err.Error()})
	}
}

func (s *AllocationService) invalidateStats(ctx context.Context) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.Error(map[string]interface{}{"event": "cache_invalidate_failed", "err": err.Error()})
	}
}

type CreateUnitInput struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// CreateUnit registers a new allocatable unit. Status defaults to vacant.
func (s *AllocationService) CreateUnit(ctx context.Context, in CreateUnitInput) (*UnitView, error) {
	if in.Type == "" {
		return nil, domain.ErrInvalidUnitType
	}

	status := domain.UnitVacant
	if in.Status != "" {
		switch domain.UnitStatus(in.Status) {
		case domain.UnitVacant, domain.UnitBlocked, domain.UnitMaintenance:
			status = domain.UnitStatus(in.Status)
		default:
			// Occupied requires an allocation; it cannot be set at setup time.
			return nil, fmt.Errorf("%w %q", domain.ErrInvalidUnitStatus, in.Status)
		}
	}

	unit := &domain.Unit{
		ID:        uuid.New(),
		Type:      in.Type,
		Status:    status,
		Version:   1,
		CreatedAt: s.clock.Now(),
	}
	if err := s.unitRepo.Create(ctx, unit); err != nil {
		return nil, fmt.Errorf("create unit: %w", err)
	}

	s.invalidateSnapshots(ctx)
	return &UnitView{ID: unit.ID.String(), Type: unit.Type, Status: string(unit.Status)}, nil
}

type RequestPreferences struct {
	Type string `json:"type"`
}

type SubmitRequestInput struct {
	RequesterID  string             `json:"requester_id"`
	PriorityRank int                `json:"priority_rank"`
	Preferences  RequestPreferences `json:"preferences"`
}

type RequestView struct {
	ID           string             `json:"id"`
	RequesterID  string             `json:"requester_id"`
	PriorityRank int                `json:"priority_rank"`
	Preferences  RequestPreferences `json:"preferences"`
	AppliedAt    time.Time          `json:"applied_at"`
	Fulfilled    bool               `json:"fulfilled"`
}

// SubmitRequest places a new entry on the waitlist.
func (s *AllocationService) SubmitRequest(ctx context.Context, in SubmitRequestInput) (*RequestView, error) {
	requesterID, err := uuid.Parse(in.RequesterID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	if in.PriorityRank < 0 {
		return nil, domain.ErrInvalidPriority
	}

	request := &domain.Request{
		ID:            uuid.New(),
		RequesterID:   requesterID,
		PriorityRank:  in.PriorityRank,
		PreferredType: in.Preferences.Type,
		AppliedAt:     s.clock.Now(),
		Fulfilled:     false,
		Version:       1,
	}
	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// waitlist_pending just grew; drop the cached summary.
	s.invalidateStats(ctx)
	return requestView(request), nil
}

// ListPendingRequests returns the current waitlist in matcher order.
func (s *AllocationService) ListPendingRequests(ctx context.Context) ([]RequestView, error) {
	pending, err := s.requestRepo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	views := make([]RequestView, 0, len(pending))
	for i := range pending {
		views = append(views, *requestView(&pending[i]))
	}
	return views, nil
}

func requestView(r *domain.Request) *RequestView {
	return &RequestView{
		ID:           r.ID.String(),
		RequesterID:  r.RequesterID.String(),
		PriorityRank: r.PriorityRank,
		Preferences:  RequestPreferences{Type: r.PreferredType},
		AppliedAt:    r.AppliedAt,
		Fulfilled:    r.Fulfilled,
	}
}

type AuditEventView struct {
	ID         int64     `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id"`
	Timestamp  time.Time `json:"timestamp"`
	Notes      string    `json:"notes"`
}

type AuditPage struct {
	Events     []AuditEventView `json:"events"`
	NextCursor int64            `json:"next_cursor,omitempty"`
}

// QueryAudit reads the audit log in insertion (id) order. NextCursor is set
// when the page is full; passing it back resumes after the last returned event.
func (s *AllocationService) QueryAudit(ctx context.Context, filter ports.AuditFilter) (*AuditPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditPageSize
	}
	if filter.Limit > maxAuditPageSize {
		filter.Limit = maxAuditPageSize
	}

	events, err := s.auditRepo.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}

	page := &AuditPage{Events: make([]AuditEventView, 0, len(events))}
	for _, e := range events {
		page.Events = append(page.Events, AuditEventView{
			ID:         e.ID,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Action:     e.Action,
			ActorID:    e.ActorID,
			Timestamp:  e.Timestamp,
			Notes:      e.Notes,
		})
	}
	if len(events) == filter.Limit {
		page.NextCursor = events[len(events)-1].ID
	}
	return page, nil
}

type StatsReport struct {
	TotalUnits      int                    `json:"total_units"`
	Occupied        int                    `json:"occupied"`
	Vacant          int                    `json:"vacant"`
	Blocked         int                    `json:"blocked"`
	Maintenance     int                    `json:"maintenance"`
	OccupancyRate   int                    `json:"occupancy_rate"`
	ByType          []domain.TypeOccupancy `json:"by_type"`
	WaitlistPending int                    `json:"waitlist_pending"`
}

// Stats summarises inventory occupancy and waitlist depth for dashboards.
func (s *AllocationService) Stats(ctx context.Context) (*StatsReport, error) {
	if s.redisClient != nil {
		if raw, err := s.redisClient.Get(ctx, statsCacheKey).Result(); err == nil {
			var report StatsReport
			if json.Unmarshal([]byte(raw), &report) == nil {
				return &report, nil
			}
		}
	}

	counts, err := s.unitRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count units: %w", err)
	}
	byType, err := s.unitRepo.OccupancyByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("occupancy by type: %w", err)
	}
	pending, err := s.requestRepo.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending requests: %w", err)
	}

	report := &StatsReport{
		Occupied:        counts[domain.UnitOccupied],
		Vacant:          counts[domain.UnitVacant],
		Blocked:         counts[domain.UnitBlocked],
		Maintenance:     counts[domain.UnitMaintenance],
		ByType:          byType,
		WaitlistPending: pending,
	}
	for _, n := range counts {
		report.TotalUnits += n
	}
	if report.TotalUnits > 0 {
		report.OccupancyRate = int(float64(report.Occupied)/float64(report.TotalUnits)*100 + 0.5)
	}

	if s.redisClient != nil {
		if payload, err := json.Marshal(report); err == nil {
			if err := s.redisClient.Set(ctx, statsCacheKey, payload, statsCacheTTL).Err(); err != nil {
				s.logger.Error(map[string]interface{}{"event": "cache_set_failed", "key": statsCacheKey, "err": err.Error()})
			}
		}
	}

	return report, nil
}
