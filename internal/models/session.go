package models

import "time"

// SessionStatus represents the lifecycle of a single lesson occurrence.
type SessionStatus string

// Possible session statuses.
const (
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// Session is one concrete dated lesson owned by an enrollment.
//
// The central invariant of the whole subsystem: no two non-cancelled
// sessions for the same teacher, nor for the same student, may overlap
// in time on the same date.
type Session struct {
	ID            string        `db:"id" json:"id"`
	EnrollmentID  string        `db:"enrollment_id" json:"enrollment_id"`
	TeacherID     string        `db:"teacher_id" json:"teacher_id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	Date          time.Time     `db:"date" json:"date"`
	StartTick     int           `db:"start_tick" json:"-"`
	EndTick       int           `db:"end_tick" json:"-"`
	SessionNumber int           `db:"session_number" json:"session_number"`
	Status        SessionStatus `db:"status" json:"status"`
	IsTrial       bool          `db:"is_trial" json:"is_trial"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Slot returns the session's tick range.
func (s Session) Slot() SlotRange {
	return SlotRange{Start: s.StartTick, End: s.EndTick}
}

// DateKey renders the session date in wire format.
func (s Session) DateKey() string {
	return s.Date.Format(DateLayout)
}

// SessionFilter describes query params for listing sessions.
type SessionFilter struct {
	EnrollmentID string
	TeacherID    string
	StudentID    string
	Status       SessionStatus
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// PlannedSession is a generator output row before persistence.
type PlannedSession struct {
	Date          time.Time `json:"date"`
	Slot          SlotRange `json:"-"`
	SlotString    string    `json:"slot"`
	SessionNumber int       `json:"session_number"`
}
