package models

import "time"

// BookingRequestStatus represents the lifecycle of a booking request.
type BookingRequestStatus string

// Possible booking request statuses.
const (
	BookingStatusPending   BookingRequestStatus = "PENDING"
	BookingStatusApproved  BookingRequestStatus = "APPROVED"
	BookingStatusRejected  BookingRequestStatus = "REJECTED"
	BookingStatusCancelled BookingRequestStatus = "CANCELLED"
)

// BookingRequestKind distinguishes single, recurring and trial intents.
type BookingRequestKind string

// Possible booking request kinds.
const (
	BookingKindSingle    BookingRequestKind = "SINGLE"
	BookingKindRecurring BookingRequestKind = "RECURRING"
	BookingKindTrial     BookingRequestKind = "TRIAL"
)

// BookingRequest is the student-submitted intent to book lessons.
// Single and trial requests carry one date and one slot; recurring
// requests carry a weekday pattern with a date range and target count.
type BookingRequest struct {
	ID        string               `db:"id" json:"id"`
	StudentID string               `db:"student_id" json:"student_id"`
	TeacherID string               `db:"teacher_id" json:"teacher_id"`
	CourseID  string               `db:"course_id" json:"course_id"`
	Kind      BookingRequestKind   `db:"kind" json:"kind"`
	Status    BookingRequestStatus `db:"status" json:"status"`

	Date *time.Time `db:"date" json:"date,omitempty"`
	Slot string     `db:"slot" json:"slot,omitempty"`

	Weekdays   IntList    `db:"weekdays" json:"weekdays,omitempty"`
	Slots      SlotList   `db:"slots" json:"slots,omitempty"`
	RangeStart *time.Time `db:"range_start" json:"range_start,omitempty"`
	RangeEnd   *time.Time `db:"range_end" json:"range_end,omitempty"`
	TotalTimes int        `db:"total_times" json:"total_times,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BookingRequestFilter describes query params for listing requests.
type BookingRequestFilter struct {
	StudentID string
	TeacherID string
	Status    BookingRequestStatus
	Kind      BookingRequestKind
	Page      int
	PageSize  int
}
