package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/valtrion/allocd/internal/core/domain"
	"github.com/valtrion/allocd/internal/core/ports"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Query reads audit events ascending by id. The serial id is the pagination
// key: timestamps are captured before the writing transaction begins, so
// ordering by occurred_at could interleave with the id cursor under
// concurrent batches and make a resumed page skip events.
func (r *AuditRepository) Query(ctx context.Context, filter ports.AuditFilter) ([]domain.AuditEvent, error) {
	var conditions []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.EntityType != "" {
		conditions = append(conditions, "entity_type = "+arg(filter.EntityType))
	}
	if filter.EntityID != "" {
		conditions = append(conditions, "entity_id = "+arg(filter.EntityID))
	}
	if filter.From != nil {
		conditions = append(conditions, "occurred_at >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "occurred_at <= "+arg(*filter.To))
	}
	if filter.AfterID > 0 {
		conditions = append(conditions, "id > "+arg(filter.AfterID))
	}

	query := `
	SELECT id, entity_type, entity_id, action, actor_id, occurred_at, notes
	FROM audit_events
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}

	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		if err := rows.Scan(
			&event.ID,
			&event.EntityType,
			&event.EntityID,
			&event.Action,
			&event.ActorID,
			&event.Timestamp,
			&event.Notes,
		); err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	return events, rows.Err()
}
