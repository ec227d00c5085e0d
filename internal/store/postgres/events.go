package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-clock/internal/identitystore"
	"github.com/kozaktomas/face-clock/internal/store"
)

// EventRepository provides PostgreSQL-backed attendance log storage.
type EventRepository struct {
	pool *Pool
}

// NewEventRepository creates a new PostgreSQL event repository.
func NewEventRepository(pool *Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Append records one attendance event.
func (r *EventRepository) Append(ctx context.Context, event *store.StoredEvent) error {
	query := `
		INSERT INTO events (id, employee_id, employee_name, event_type, mode,
		                    recognized, confidence, message, source, event_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.EmployeeID,
		event.EmployeeName,
		string(event.EventType),
		string(event.Mode),
		event.Recognized,
		event.Confidence,
		event.Message,
		event.Source,
		event.EventTime,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// buildEventFilter turns an EventFilter into a WHERE clause and arguments.
// Free-text search is ILIKE-based; accent folding happens client-side in
// the memory backend but not here, PostgreSQL would need the unaccent
// extension for parity.
func buildEventFilter(filter store.EventFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Date != "" {
		args = append(args, filter.Date)
		clauses = append(clauses, fmt.Sprintf("event_time::date = $%d::date", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(employee_name ILIKE $%d OR employee_id ILIKE $%d OR message ILIKE $%d OR mode ILIKE $%d OR event_type ILIKE $%d)",
			n, n, n, n, n))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns one filtered page ordered newest first plus the total count.
func (r *EventRepository) List(ctx context.Context, filter store.EventFilter) ([]store.StoredEvent, int, error) {
	where, args := buildEventFilter(filter)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM events"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query := `
		SELECT id, employee_id, employee_name, event_type, mode,
		       recognized, confidence, message, source, event_time
		FROM events
	` + where + fmt.Sprintf(" ORDER BY event_time DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []store.StoredEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate events: %w", err)
	}
	return events, total, nil
}

// LastClockEvent returns the employee's most recent recognized verification
// event on the given day, or nil when there is none.
func (r *EventRepository) LastClockEvent(ctx context.Context, employeeID string, day string) (*store.StoredEvent, error) {
	query := `
		SELECT id, employee_id, employee_name, event_type, mode,
		       recognized, confidence, message, source, event_time
		FROM events
		WHERE employee_id = $1
		  AND event_type = 'verification'
		  AND recognized
		  AND event_time::date = $2::date
		ORDER BY event_time DESC
		LIMIT 1
	`

	rows, err := r.pool.Query(ctx, query, employeeID, day)
	if err != nil {
		return nil, fmt.Errorf("last clock event query: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("last clock event: %w", err)
		}
		return nil, nil
	}
	return scanEvent(rows)
}

// scanEvent reads one event row.
func scanEvent(rows *sql.Rows) (*store.StoredEvent, error) {
	var event store.StoredEvent
	var eventType, mode string
	var confidence sql.NullFloat64

	if err := rows.Scan(
		&event.ID,
		&event.EmployeeID,
		&event.EmployeeName,
		&eventType,
		&mode,
		&event.Recognized,
		&confidence,
		&event.Message,
		&event.Source,
		&event.EventTime,
	); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	event.EventType = identitystore.EventType(eventType)
	event.Mode = identitystore.Mode(mode)
	if confidence.Valid {
		event.Confidence = &confidence.Float64
	}
	return &event, nil
}
