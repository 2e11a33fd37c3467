package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/valtrion/allocd/internal/core/domain"
	"github.com/valtrion/allocd/internal/core/ports"
	"github.com/valtrion/allocd/internal/core/ports/mocks"
	"github.com/valtrion/allocd/internal/core/services"
	"github.com/valtrion/allocd/internal/obs"
	"github.com/valtrion/allocd/internal/platform/clock"
)

var fixedNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

type serviceFixture struct {
	units     *mocks.UnitRepository
	requests  *mocks.RequestRepository
	allocs    *mocks.AllocationRepository
	audit     *mocks.AuditRepository
	redisMock redismock.ClientMock
	svc       *services.AllocationService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	unitRepo := mocks.NewUnitRepository(t)
	requestRepo := mocks.NewRequestRepository(t)
	allocRepo := mocks.NewAllocationRepository(t)
	auditRepo := mocks.NewAuditRepository(t)

	db, redisMock := redismock.NewClientMock()

	svc := services.NewAllocationService(
		unitRepo, requestRepo, allocRepo, auditRepo,
		db, clock.NewFixed(fixedNow), obs.NewLogger(), nil,
	)

	return &serviceFixture{
		units:     unitRepo,
		requests:  requestRepo,
		allocs:    allocRepo,
		audit:     auditRepo,
		redisMock: redisMock,
		svc:       svc,
	}
}

func pairForRequest(id uuid.UUID) interface{} {
	return mock.MatchedBy(func(p domain.ProposedPair) bool {
		return p.Request.ID == id
	})
}

func TestRunBatch_AppliesMatchedPair(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req := pendingRequest(1, 1, "double", 0)
	unit := vacantUnit(1, "double")
	alloc := &domain.Allocation{
		ID:          uuid.New(),
		RequestID:   req.ID,
		UnitID:      unit.ID,
		Status:      domain.AllocationActive,
		AllocatedAt: fixedNow,
	}

	f.requests.On("ListPending", ctx).Return([]domain.Request{req}, nil)
	f.units.On("ListByStatus", ctx, domain.UnitVacant).Return([]domain.Unit{unit}, nil)
	f.allocs.On("Apply", ctx, pairForRequest(req.ID), "operator-7", fixedNow).Return(alloc, nil)

	f.redisMock.ExpectDel("units:vacant", "stats:summary").SetVal(2)

	result, err := f.svc.RunBatch(ctx, "operator-7")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Requested)
	if assert.Len(t, result.Applied, 1) {
		assert.Equal(t, alloc.ID.String(), result.Applied[0].AllocationID)
		assert.Equal(t, unit.ID.String(), result.Applied[0].UnitID)
	}
	assert.Empty(t, result.Skipped)
	assert.Zero(t, result.Unmatched)

	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestRunBatch_ConflictIsSkippedNotFatal(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first := pendingRequest(1, 1, "", 0)
	second := pendingRequest(2, 2, "", 0)
	units := []domain.Unit{vacantUnit(1, "single"), vacantUnit(2, "single")}

	f.requests.On("ListPending", ctx).Return([]domain.Request{first, second}, nil)
	f.units.On("ListByStatus", ctx, domain.UnitVacant).Return(units, nil)

	// The first pair loses a race; the second still applies.
	f.allocs.On("Apply", ctx, pairForRequest(first.ID), "system", fixedNow).
		Return(nil, domain.ErrConflict)
	alloc := &domain.Allocation{ID: uuid.New(), RequestID: second.ID, UnitID: units[1].ID, Status: domain.AllocationActive, AllocatedAt: fixedNow}
	f.allocs.On("Apply", ctx, pairForRequest(second.ID), "system", fixedNow).
		Return(alloc, nil)

	f.redisMock.ExpectDel("units:vacant", "stats:summary").SetVal(2)

	result, err := f.svc.RunBatch(ctx, "")

	require.NoError(t, err)
	assert.Len(t, result.Applied, 1)
	if assert.Len(t, result.Skipped, 1) {
		assert.Equal(t, first.ID.String(), result.Skipped[0].RequestID)
		assert.Equal(t, "conflict", result.Skipped[0].Reason)
	}
	// Applied + skipped + unmatched always accounts for every pending request.
	assert.Equal(t, result.Requested, len(result.Applied)+len(result.Skipped)+result.Unmatched)
}

func TestRunBatch_UnmatchedIsNotASkip(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first := pendingRequest(1, 1, "double", 0)
	second := pendingRequest(2, 2, "double", 0)
	unit := vacantUnit(1, "double")

	f.requests.On("ListPending", ctx).Return([]domain.Request{first, second}, nil)
	f.units.On("ListByStatus", ctx, domain.UnitVacant).Return([]domain.Unit{unit}, nil)

	alloc := &domain.Allocation{ID: uuid.New(), RequestID: first.ID, UnitID: unit.ID, Status: domain.AllocationActive, AllocatedAt: fixedNow}
	f.allocs.On("Apply", ctx, pairForRequest(first.ID), "system", fixedNow).Return(alloc, nil)

	f.redisMock.ExpectDel("units:vacant", "stats:summary").SetVal(2)

	result, err := f.svc.RunBatch(ctx, "system")

	require.NoError(t, err)
	assert.Len(t, result.Applied, 1)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, 1, result.Unmatched)
	assert.Equal(t, 2, result.Requested)
}

func TestRunBatch_StoreFailureAbortsRemainder(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req := pendingRequest(1, 1, "", 0)

	f.requests.On("ListPending", ctx).Return([]domain.Request{req}, nil)
	f.units.On("ListByStatus", ctx, domain.UnitVacant).Return([]domain.Unit{vacantUnit(1, "single")}, nil)
	f.allocs.On("Apply", ctx, pairForRequest(req.ID), "system", fixedNow).
		Return(nil, errors.New("connection reset"))

	result, err := f.svc.RunBatch(ctx, "system")

	assert.Error(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result.Applied)
}

func TestRunBatch_CancelledBetweenApplies(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.requests.On("ListPending", ctx).Return([]domain.Request{pendingRequest(1, 1, "", 0)}, nil)
	f.units.On("ListByStatus", ctx, domain.UnitVacant).Return([]domain.Unit{vacantUnit(1, "single")}, nil)

	result, err := f.svc.RunBatch(ctx, "system")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Applied)
	f.allocs.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunBatch_EmptySnapshot(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.requests.On("ListPending", ctx).Return([]domain.Request{}, nil)
	f.units.On("ListByStatus", ctx, domain.UnitVacant).Return([]domain.Unit{}, nil)

	result, err := f.svc.RunBatch(ctx, "system")

	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.Empty(t, result.Skipped)
	assert.Zero(t, result.Unmatched)
	// Nothing applied, nothing to invalidate.
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestRelease_Success(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	allocID := uuid.New()
	vacated := fixedNow
	alloc := &domain.Allocation{
		ID:          allocID,
		RequestID:   uuid.New(),
		UnitID:      uuid.New(),
		Status:      domain.AllocationVacated,
		AllocatedAt: fixedNow.Add(-24 * time.Hour),
		VacatedAt:   &vacated,
	}

	f.allocs.On("Release", ctx, allocID, "warden-2", fixedNow).Return(alloc, nil)
	f.redisMock.ExpectDel("units:vacant", "stats:summary").SetVal(2)

	got, err := f.svc.Release(ctx, allocID.String(), "warden-2")

	require.NoError(t, err)
	assert.Equal(t, domain.AllocationVacated, got.Status)
	assert.NotNil(t, got.VacatedAt)
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestRelease_AlreadyReleased(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	allocID := uuid.New()
	f.allocs.On("Release", ctx, allocID, "system", fixedNow).
		Return(nil, domain.ErrAlreadyReleased)

	got, err := f.svc.Release(ctx, allocID.String(), "system")

	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrAlreadyReleased)
	// No state change, no cache invalidation.
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestRelease_InvalidID(t *testing.T) {
	f := newServiceFixture(t)

	got, err := f.svc.Release(context.Background(), "not-a-uuid", "system")

	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	f.allocs.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitRequest_SetsAppliedAtAndPending(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	requesterID := uuid.New()
	f.requests.On("Create", ctx, mock.MatchedBy(func(r *domain.Request) bool {
		return r.RequesterID == requesterID &&
			r.PriorityRank == 2 &&
			r.PreferredType == "double" &&
			r.AppliedAt.Equal(fixedNow) &&
			!r.Fulfilled
	})).Return(nil)

	// A new pending entry makes the cached waitlist_pending count stale.
	f.redisMock.ExpectDel("stats:summary").SetVal(1)

	view, err := f.svc.SubmitRequest(ctx, services.SubmitRequestInput{
		RequesterID:  requesterID.String(),
		PriorityRank: 2,
		Preferences:  services.RequestPreferences{Type: "double"},
	})

	require.NoError(t, err)
	assert.False(t, view.Fulfilled)
	assert.Equal(t, "double", view.Preferences.Type)
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestSubmitRequest_RejectsNegativePriority(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.SubmitRequest(context.Background(), services.SubmitRequestInput{
		RequesterID:  uuid.New().String(),
		PriorityRank: -1,
	})

	assert.ErrorIs(t, err, domain.ErrInvalidPriority)
}

func TestCreateUnit_DefaultsToVacant(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.units.On("Create", ctx, mock.MatchedBy(func(u *domain.Unit) bool {
		return u.Type == "single" && u.Status == domain.UnitVacant && u.Version == 1
	})).Return(nil)
	f.redisMock.ExpectDel("units:vacant", "stats:summary").SetVal(2)

	view, err := f.svc.CreateUnit(ctx, services.CreateUnitInput{Type: "single"})

	require.NoError(t, err)
	assert.Equal(t, "vacant", view.Status)
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestCreateUnit_RejectsOccupiedAtSetup(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateUnit(context.Background(), services.CreateUnitInput{
		Type:   "single",
		Status: "occupied",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidUnitStatus)
	f.units.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestQueryAudit_SetsCursorOnFullPage(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	events := []domain.AuditEvent{
		{ID: 11, EntityType: "allocation", Action: domain.AuditActionAllocate, Timestamp: fixedNow},
		{ID: 12, EntityType: "allocation", Action: domain.AuditActionVacate, Timestamp: fixedNow},
	}
	f.audit.On("Query", ctx, ports.AuditFilter{EntityType: "allocation", Limit: 2}).
		Return(events, nil)

	page, err := f.svc.QueryAudit(ctx, ports.AuditFilter{EntityType: "allocation", Limit: 2})

	require.NoError(t, err)
	assert.Len(t, page.Events, 2)
	assert.Equal(t, int64(12), page.NextCursor)
}

func TestQueryAudit_NoCursorOnShortPage(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.audit.On("Query", ctx, ports.AuditFilter{Limit: 50}).
		Return([]domain.AuditEvent{{ID: 3, Timestamp: fixedNow}}, nil)

	page, err := f.svc.QueryAudit(ctx, ports.AuditFilter{})

	require.NoError(t, err)
	assert.Len(t, page.Events, 1)
	assert.Zero(t, page.NextCursor)
}

func TestListUnits_VacantServedFromCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	cached := []services.UnitView{{ID: uuid.New().String(), Type: "single", Status: "vacant"}}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)

	f.redisMock.ExpectGet("units:vacant").SetVal(string(payload))

	views, err := f.svc.ListUnits(ctx, domain.UnitVacant)

	require.NoError(t, err)
	assert.Equal(t, cached, views)
	f.units.AssertNotCalled(t, "ListByStatus", mock.Anything, mock.Anything)
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestListUnits_CacheMissFallsThrough(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	unit := vacantUnit(1, "single")
	expected := []services.UnitView{{ID: unit.ID.String(), Type: "single", Status: "vacant"}}
	payload, err := json.Marshal(expected)
	require.NoError(t, err)

	f.redisMock.ExpectGet("units:vacant").RedisNil()
	f.units.On("ListByStatus", ctx, domain.UnitVacant).Return([]domain.Unit{unit}, nil)
	f.redisMock.ExpectSet("units:vacant", payload, 30*time.Second).SetVal("OK")

	views, err := f.svc.ListUnits(ctx, domain.UnitVacant)

	require.NoError(t, err)
	assert.Equal(t, expected, views)
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestStats_ComputesOccupancy(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.redisMock.ExpectGet("stats:summary").RedisNil()
	f.units.On("CountByStatus", ctx).Return(map[domain.UnitStatus]int{
		domain.UnitOccupied:    3,
		domain.UnitVacant:      1,
		domain.UnitMaintenance: 1,
	}, nil)
	f.units.On("OccupancyByType", ctx).Return([]domain.TypeOccupancy{
		{Type: "double", Total: 3, Occupied: 2},
		{Type: "single", Total: 2, Occupied: 1},
	}, nil)
	f.requests.On("CountPending", ctx).Return(4, nil)

	expected := &services.StatsReport{
		TotalUnits:    5,
		Occupied:      3,
		Vacant:        1,
		Maintenance:   1,
		OccupancyRate: 60,
		ByType: []domain.TypeOccupancy{
			{Type: "double", Total: 3, Occupied: 2},
			{Type: "single", Total: 2, Occupied: 1},
		},
		WaitlistPending: 4,
	}
	payload, err := json.Marshal(expected)
	require.NoError(t, err)
	f.redisMock.ExpectSet("stats:summary", payload, time.Minute).SetVal("OK")

	report, err := f.svc.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, expected, report)
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}
