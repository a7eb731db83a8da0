package models

import "time"

// TeacherAvailabilityPattern declares a teacher's standing weekly
// willingness to teach. It never reflects bookings.
type TeacherAvailabilityPattern struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Weekday   int       `db:"weekday" json:"weekday"` // ISO, Monday=1 .. Sunday=7
	Slots     SlotList  `db:"slots" json:"slots"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DailyAvailabilityOverride replaces the weekly pattern for one
// calendar day.
type DailyAvailabilityOverride struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Date      time.Time `db:"date" json:"date"`
	Slots     SlotList  `db:"slots" json:"slots"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DeclaredAvailability is the resolved declaration for one teacher/day.
type DeclaredAvailability struct {
	Slots []SlotRange
}

// Covers reports whether the declaration fully covers the given range.
func (d DeclaredAvailability) Covers(r SlotRange) bool {
	for t := r.Start; t < r.End; t++ {
		if !d.coversTick(t) {
			return false
		}
	}
	return true
}

func (d DeclaredAvailability) coversTick(tick int) bool {
	for _, s := range d.Slots {
		if s.ContainsTick(tick) {
			return true
		}
	}
	return false
}

// Unavailability reasons, ordered as they are evaluated.
const (
	ReasonTeacherUnavailable = "teacherUnavailable"
	ReasonBusy               = "busy"
	ReasonScheduledTrial     = "scheduledTrial"
	ReasonPendingTrial       = "pendingTrial"
	ReasonDuplicateTrialSlot = "duplicateTrialSlot"
)

// FormalSlotAvailability reports whether one formal slot can take a new
// formal booking.
type FormalSlotAvailability struct {
	Slot      string   `json:"slot"`
	Available bool     `json:"available"`
	Reasons   []string `json:"reasons,omitempty"`
}

// TrialSlotAvailability reports whether one 30-minute tick can take a
// new trial booking.
type TrialSlotAvailability struct {
	Slot      string   `json:"slot"`
	Available bool     `json:"available"`
	Reasons   []string `json:"reasons,omitempty"`
}

// DayAvailability is the full availability picture for a teacher/day.
type DayAvailability struct {
	TeacherID   string                   `json:"teacher_id"`
	Date        string                   `json:"date"`
	FormalSlots []FormalSlotAvailability `json:"formal_slots"`
	TrialSlots  []TrialSlotAvailability  `json:"trial_slots"`
}
