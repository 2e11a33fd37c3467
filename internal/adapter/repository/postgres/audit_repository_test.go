package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valtrion/allocd/internal/adapter/repository/postgres"
	"github.com/valtrion/allocd/internal/core/ports"
)

func newAuditRepoFixture(t *testing.T) (*postgres.AuditRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return postgres.NewAuditRepository(db), mock
}

func auditRows(ids ...int64) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "entity_type", "entity_id", "action", "actor_id", "occurred_at", "notes"})
	for _, id := range ids {
		rows.AddRow(id, "allocation", uuid.New().String(), "allocate", "system", repoNow, "")
	}
	return rows
}

func TestAuditQuery_OrdersAndPagesByID(t *testing.T) {
	repo, mock := newAuditRepoFixture(t)

	// The cursor filters on id, so the result set must be ordered by id too:
	// a timestamp ordering would let a resumed page skip events whose id and
	// occurred_at disagree.
	mock.ExpectQuery(`id > \$2 ORDER BY id LIMIT \$3`).
		WithArgs("allocation", int64(11), 2).
		WillReturnRows(auditRows(12, 13))

	events, err := repo.Query(context.Background(), ports.AuditFilter{
		EntityType: "allocation",
		AfterID:    11,
		Limit:      2,
	})

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(12), events[0].ID)
	assert.Equal(t, int64(13), events[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditQuery_UnfilteredStillOrdersByID(t *testing.T) {
	repo, mock := newAuditRepoFixture(t)

	mock.ExpectQuery(`FROM audit_events ORDER BY id`).
		WillReturnRows(auditRows(1, 2, 3))

	events, err := repo.Query(context.Background(), ports.AuditFilter{})

	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditQuery_TimeWindowFilters(t *testing.T) {
	repo, mock := newAuditRepoFixture(t)

	from := repoNow.Add(-time.Hour)
	to := repoNow

	mock.ExpectQuery(`occurred_at >= \$1 AND occurred_at <= \$2`).
		WithArgs(from, to).
		WillReturnRows(auditRows(7))

	events, err := repo.Query(context.Background(), ports.AuditFilter{From: &from, To: &to})

	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
