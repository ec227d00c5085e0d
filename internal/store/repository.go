// Package store is the reference identity store: it owns the enrollment
// templates, the recognition decision policy and the attendance event log.
// Production deployments can point the terminal at a managed store instead;
// this implementation keeps the wire contract honest and serves small sites.
package store

import (
	"context"
	"time"

	"github.com/kozaktomas/face-clock/internal/identitystore"
)

// StoredTemplate is a worker's enrolled reference descriptor. Re-enrollment
// overwrites the previous embedding.
type StoredTemplate struct {
	ID           string
	EmployeeID   string
	EmployeeName string
	Embedding    []float32
	UpdatedAt    time.Time
}

// TemplateMatch pairs a template with its similarity to a query embedding.
type TemplateMatch struct {
	Template   StoredTemplate
	Similarity float64
}

// StoredEvent is one attendance log entry. Employee fields are empty for
// unrecognized verification attempts.
type StoredEvent struct {
	ID           string
	EmployeeID   string
	EmployeeName string
	EventType    identitystore.EventType
	Mode         identitystore.Mode
	Recognized   bool
	Confidence   *float64
	Message      string
	Source       string
	EventTime    time.Time
}

// EventFilter selects a page of the attendance log.
type EventFilter struct {
	Date   string // ISO date (YYYY-MM-DD), matched against the event day
	Search string // free text, case- and diacritic-insensitive
	Limit  int
	Offset int
}

// TemplateRepository stores enrollment templates and answers nearest
// neighbor queries over them.
type TemplateRepository interface {
	// Upsert creates or overwrites the template for the employee.
	Upsert(ctx context.Context, template *StoredTemplate) error
	// Get returns the template for an employee, or nil when not enrolled.
	Get(ctx context.Context, employeeID string) (*StoredTemplate, error)
	// FindNearest returns up to k templates ordered by descending cosine
	// similarity to the query embedding.
	FindNearest(ctx context.Context, embedding []float32, k int) ([]TemplateMatch, error)
	// Count returns the number of enrolled templates.
	Count(ctx context.Context) (int, error)
}

// EventRepository stores the append-only attendance log.
type EventRepository interface {
	// Append records one event. Called exactly once per verification or
	// registration, recognized or not.
	Append(ctx context.Context, event *StoredEvent) error
	// List returns one filtered page ordered newest first, plus the total
	// number of events matching the filter.
	List(ctx context.Context, filter EventFilter) ([]StoredEvent, int, error)
	// LastClockEvent returns the employee's most recent recognized
	// verification event on the given day, or nil when there is none.
	LastClockEvent(ctx context.Context, employeeID string, day string) (*StoredEvent, error)
}
