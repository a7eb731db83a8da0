package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment is the approved relationship between a student, a teacher
// and a course, produced by an accepted booking request. It owns all of
// its sessions.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	TeacherID        string           `db:"teacher_id" json:"teacher_id"`
	CourseID         string           `db:"course_id" json:"course_id"`
	BookingRequestID string           `db:"booking_request_id" json:"booking_request_id"`
	TotalSessions    int              `db:"total_sessions" json:"total_sessions"`
	CompletedCount   int              `db:"completed_count" json:"completed_count"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	TeacherID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
