package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-clock/internal/identitystore"
)

// DefaultThreshold is the minimum cosine similarity between a live embedding
// and an enrolled template for a recognized decision. Calibrated for
// unit-length ArcFace-family embeddings.
const DefaultThreshold = 0.60

const dayFormat = "2006-01-02"

// RequestError is a caller mistake (missing identifier, wrong embedding
// dimensionality). Handlers map it to a 4xx so clients can tell rejection
// from transport failure.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string { return e.Reason }

// Service owns the recognition decision policy over a template repository
// and the attendance event log.
type Service struct {
	templates TemplateRepository
	events    EventRepository
	threshold float64
	dim       int
	now       func() time.Time
}

// NewService creates the decision service. dim is the embedding
// dimensionality enforced on every request; threshold <= 0 falls back to
// DefaultThreshold.
func NewService(templates TemplateRepository, events EventRepository, dim int, threshold float64) *Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{
		templates: templates,
		events:    events,
		threshold: threshold,
		dim:       dim,
		now:       time.Now,
	}
}

// Register enrolls or refreshes a worker's template and appends a
// registration event.
func (s *Service) Register(ctx context.Context, employeeID, employeeName string, embedding []float32, source string) (*identitystore.RegistrationResult, error) {
	if employeeID == "" {
		return nil, &RequestError{Reason: "employee_id is required"}
	}
	if err := s.checkDim(embedding); err != nil {
		return nil, err
	}

	existing, err := s.templates.Get(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("looking up template: %w", err)
	}

	template := &StoredTemplate{
		ID:           uuid.NewString(),
		EmployeeID:   employeeID,
		EmployeeName: employeeName,
		Embedding:    embedding,
		UpdatedAt:    s.now(),
	}
	message := "enrolled"
	if existing != nil {
		// Keep the template identity stable across re-enrollment.
		template.ID = existing.ID
		if template.EmployeeName == "" {
			template.EmployeeName = existing.EmployeeName
		}
		message = "template updated"
	}

	if err := s.templates.Upsert(ctx, template); err != nil {
		return nil, fmt.Errorf("storing template: %w", err)
	}

	event := &StoredEvent{
		ID:           uuid.NewString(),
		EmployeeID:   template.EmployeeID,
		EmployeeName: template.EmployeeName,
		EventType:    identitystore.EventRegistration,
		Recognized:   true,
		Message:      message,
		Source:       source,
		EventTime:    s.now(),
	}
	if err := s.events.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("recording registration event: %w", err)
	}

	return &identitystore.RegistrationResult{
		Success:      true,
		EmployeeID:   template.EmployeeID,
		EmployeeName: template.EmployeeName,
		EmbeddingID:  template.ID,
		Message:      message,
	}, nil
}

// Verify matches a live embedding against enrolled templates and decides
// whether the requested attendance transition is authorized. Every call
// appends exactly one verification event, recognized or not.
func (s *Service) Verify(ctx context.Context, mode identitystore.Mode, embedding []float32, source string) (*identitystore.VerificationOutcome, error) {
	if !mode.Valid() {
		return nil, &RequestError{Reason: fmt.Sprintf("invalid mode %q", mode)}
	}
	if err := s.checkDim(embedding); err != nil {
		return nil, err
	}

	now := s.now()
	outcome := &identitystore.VerificationOutcome{
		Mode:      mode,
		Timestamp: now,
	}
	event := &StoredEvent{
		ID:        uuid.NewString(),
		EventType: identitystore.EventVerification,
		Mode:      mode,
		Source:    source,
		EventTime: now,
	}

	matches, err := s.templates.FindNearest(ctx, embedding, 1)
	if err != nil {
		return nil, fmt.Errorf("searching templates: %w", err)
	}

	switch {
	case len(matches) == 0:
		outcome.Message = "no workers enrolled"
	case matches[0].Similarity < s.threshold:
		similarity := matches[0].Similarity
		outcome.Confidence = &similarity
		outcome.Message = "face not recognized"
	default:
		best := matches[0]
		similarity := best.Similarity
		outcome.Confidence = &similarity
		outcome.EmployeeID = best.Template.EmployeeID
		outcome.EmployeeName = best.Template.EmployeeName
		event.EmployeeID = best.Template.EmployeeID
		event.EmployeeName = best.Template.EmployeeName

		recognized, message, err := s.checkMode(ctx, best.Template.EmployeeID, mode, now)
		if err != nil {
			return nil, err
		}
		outcome.Recognized = recognized
		outcome.Message = message
	}

	event.Recognized = outcome.Recognized
	event.Confidence = outcome.Confidence
	event.Message = outcome.Message
	if err := s.events.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("recording verification event: %w", err)
	}

	return outcome, nil
}

// checkMode validates the requested transition against the worker's current
// attendance state. A mismatch is a recognized=false decision with an
// explanatory message, never an error.
func (s *Service) checkMode(ctx context.Context, employeeID string, mode identitystore.Mode, now time.Time) (bool, string, error) {
	last, err := s.events.LastClockEvent(ctx, employeeID, now.Format(dayFormat))
	if err != nil {
		return false, "", fmt.Errorf("reading attendance state: %w", err)
	}

	switch mode {
	case identitystore.ModeClockIn:
		if last != nil && last.Mode == identitystore.ModeClockIn {
			return false, "already clocked in today", nil
		}
		return true, "clock-in recorded", nil
	case identitystore.ModeClockOut:
		if last == nil || last.Mode != identitystore.ModeClockIn {
			return false, "no clock-in recorded today", nil
		}
		return true, "clock-out recorded", nil
	}
	return false, "", &RequestError{Reason: fmt.Sprintf("invalid mode %q", mode)}
}

// Events reads one page of the attendance log.
func (s *Service) Events(ctx context.Context, filter EventFilter) (*identitystore.EventPage, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	results := make([]identitystore.AttendanceLogEntry, len(events))
	for i, e := range events {
		results[i] = identitystore.AttendanceLogEntry{
			ID:           e.ID,
			EmployeeID:   e.EmployeeID,
			EmployeeName: e.EmployeeName,
			EventType:    e.EventType,
			Mode:         e.Mode,
			Recognized:   e.Recognized,
			Confidence:   e.Confidence,
			Message:      e.Message,
			Source:       e.Source,
			EventTime:    e.EventTime,
		}
	}

	return &identitystore.EventPage{
		Count:   len(results),
		Total:   total,
		Offset:  filter.Offset,
		Limit:   filter.Limit,
		Results: results,
	}, nil
}

func (s *Service) checkDim(embedding []float32) error {
	if len(embedding) == 0 {
		return &RequestError{Reason: "embedding is required"}
	}
	if s.dim > 0 && len(embedding) != s.dim {
		return &RequestError{Reason: fmt.Sprintf("embedding has %d dimensions, expected %d", len(embedding), s.dim)}
	}
	return nil
}
