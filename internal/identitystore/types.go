// Package identitystore is the client for the remote identity store: it
// ships face embeddings over the wire for enrollment and verification and
// reads back the attendance event log.
package identitystore

import "time"

// Mode is the attendance transition a verification attempt tries to authorize.
type Mode string

const (
	ModeClockIn  Mode = "clock_in"
	ModeClockOut Mode = "clock_out"
)

// Valid reports whether the mode is one of the two known transitions.
func (m Mode) Valid() bool {
	return m == ModeClockIn || m == ModeClockOut
}

// EventType distinguishes enrollment events from verification events in the log.
type EventType string

const (
	EventRegistration EventType = "registration"
	EventVerification EventType = "verification"
)

// FacePayload is either a precomputed embedding or raw image bytes for
// deployments that extract embeddings server-side. Exactly one of the two is
// set; constructors enforce the union.
type FacePayload struct {
	embedding []float32
	image     []byte
}

// EmbeddingPayload wraps a precomputed unit-length embedding.
func EmbeddingPayload(vec []float32) FacePayload {
	return FacePayload{embedding: vec}
}

// ImagePayload wraps raw compressed image bytes for server-side extraction.
func ImagePayload(data []byte) FacePayload {
	return FacePayload{image: data}
}

// IsImage reports whether the payload carries raw image bytes.
func (p FacePayload) IsImage() bool { return p.image != nil }

// Empty reports whether neither variant is populated.
func (p FacePayload) Empty() bool {
	return len(p.embedding) == 0 && len(p.image) == 0
}

// RegistrationResult is the store's response to an enrollment request.
type RegistrationResult struct {
	Success      bool   `json:"success"`
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name,omitempty"`
	EmbeddingID  string `json:"embedding_id,omitempty"`
	Message      string `json:"message,omitempty"`
}

// VerificationOutcome is the store's recognition decision. recognized=false
// is a normal successful response (unknown face or wrong mode for the
// worker's current state), never a transport error.
type VerificationOutcome struct {
	Recognized   bool      `json:"recognized"`
	Mode         Mode      `json:"mode,omitempty"`
	EmployeeID   string    `json:"employee_id,omitempty"`
	EmployeeName string    `json:"employee_name,omitempty"`
	Confidence   *float64  `json:"confidence,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitzero"`
	Message      string    `json:"message,omitempty"`
}

// AttendanceLogEntry is one recorded registration or verification event.
// Employee fields are empty for unrecognized verification attempts.
type AttendanceLogEntry struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"employee_id,omitempty"`
	EmployeeName string    `json:"employee_name,omitempty"`
	EventType    EventType `json:"event_type"`
	Mode         Mode      `json:"mode,omitempty"`
	Recognized   bool      `json:"recognized"`
	Confidence   *float64  `json:"confidence,omitempty"`
	Message      string    `json:"message,omitempty"`
	Source       string    `json:"source,omitempty"`
	EventTime    time.Time `json:"event_time"`
}

// EventPage is one page of the attendance event log.
type EventPage struct {
	Count   int                  `json:"count"`
	Total   int                  `json:"total"`
	Offset  int                  `json:"offset"`
	Limit   int                  `json:"limit"`
	Results []AttendanceLogEntry `json:"results"`
}

// EventQuery filters the attendance event log. Zero values mean "no filter";
// Limit falls back to the server default.
type EventQuery struct {
	Date   string // ISO date (YYYY-MM-DD)
	Search string // free text, matched case-insensitively
	Limit  int
	Offset int
}
