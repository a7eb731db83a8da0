package models

import "time"

// MonthKeyLayout renders the quota month bucket.
const MonthKeyLayout = "2006-01"

// MonthlyAdjustmentCounter tracks how many reschedule/suspension
// actions an actor has applied against one enrollment in one calendar
// month. The allowance itself is configuration, never stored.
type MonthlyAdjustmentCounter struct {
	ID           string    `db:"id" json:"id"`
	ActorType    ActorType `db:"actor_type" json:"actor_type"`
	ActorID      string    `db:"actor_id" json:"actor_id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	MonthKey     string    `db:"month_key" json:"month_key"`
	UsedCount    int       `db:"used_count" json:"used_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// MonthKeyAt derives the quota bucket for a point in time.
func MonthKeyAt(t time.Time) string {
	return t.Format(MonthKeyLayout)
}
