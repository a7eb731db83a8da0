package models

import "time"

// RescheduleRequestStatus represents the lifecycle of a change request.
type RescheduleRequestStatus string

// Possible reschedule request statuses.
const (
	RescheduleStatusPending   RescheduleRequestStatus = "PENDING"
	RescheduleStatusApproved  RescheduleRequestStatus = "APPROVED"
	RescheduleStatusRejected  RescheduleRequestStatus = "REJECTED"
	RescheduleStatusCancelled RescheduleRequestStatus = "CANCELLED"
)

// RescheduleType distinguishes the three change-request shapes.
type RescheduleType string

// Possible reschedule types.
const (
	RescheduleTypeSingle    RescheduleType = "RESCHEDULE"
	RescheduleTypeRecurring RescheduleType = "RECURRING"
	RescheduleTypeCancel    RescheduleType = "CANCEL"
)

// ActorType identifies which side of an enrollment is acting.
type ActorType string

// Possible actor types.
const (
	ActorStudent ActorType = "STUDENT"
	ActorTeacher ActorType = "TEACHER"
)

// RescheduleRequest asks to move one session, replace the forward
// weekly pattern of an enrollment, or cancel sessions.
type RescheduleRequest struct {
	ID           string                  `db:"id" json:"id"`
	EnrollmentID string                  `db:"enrollment_id" json:"enrollment_id"`
	SessionID    *string                 `db:"session_id" json:"session_id,omitempty"`
	Type         RescheduleType          `db:"type" json:"type"`
	Status       RescheduleRequestStatus `db:"status" json:"status"`

	ApplicantType ActorType `db:"applicant_type" json:"applicant_type"`
	ApplicantID   string    `db:"applicant_id" json:"applicant_id"`

	// Single moves.
	NewDate *time.Time `db:"new_date" json:"new_date,omitempty"`
	NewSlot string     `db:"new_slot" json:"new_slot,omitempty"`

	// Recurring pattern replacement.
	NewWeekdays IntList  `db:"new_weekdays" json:"new_weekdays,omitempty"`
	NewSlots    SlotList `db:"new_slots" json:"new_slots,omitempty"`

	Reason        string    `db:"reason" json:"reason,omitempty"`
	QuotaConsumed bool      `db:"quota_consumed" json:"quota_consumed"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// SuspensionRequestStatus represents the lifecycle of a suspension
// request.
type SuspensionRequestStatus string

// Possible suspension request statuses.
const (
	SuspensionStatusPending  SuspensionRequestStatus = "PENDING"
	SuspensionStatusApproved SuspensionRequestStatus = "APPROVED"
	SuspensionStatusRejected SuspensionRequestStatus = "REJECTED"
)

// SuspensionRequest asks to pause an enrollment without deleting its
// history.
type SuspensionRequest struct {
	ID            string                  `db:"id" json:"id"`
	EnrollmentID  string                  `db:"enrollment_id" json:"enrollment_id"`
	ApplicantType ActorType               `db:"applicant_type" json:"applicant_type"`
	ApplicantID   string                  `db:"applicant_id" json:"applicant_id"`
	Reason        string                  `db:"reason" json:"reason"`
	Status        SuspensionRequestStatus `db:"status" json:"status"`
	QuotaConsumed bool                    `db:"quota_consumed" json:"quota_consumed"`
	CreatedAt     time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time               `db:"updated_at" json:"updated_at"`
}
