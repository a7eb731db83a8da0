package dto

// CreateRescheduleBody asks to move a session, replace the forward
// pattern or cancel sessions of an enrollment.
type CreateRescheduleBody struct {
	EnrollmentID string `json:"enrollmentId" validate:"required"`
	SessionID    string `json:"sessionId"`
	Type         string `json:"type" validate:"required,oneof=RESCHEDULE RECURRING CANCEL"`
	Reason       string `json:"reason"`

	NewDate string `json:"newDate" validate:"omitempty,datetime=2006-01-02"`
	NewSlot string `json:"newSlot"`

	NewWeekdays []int    `json:"newWeekdays" validate:"omitempty,dive,min=1,max=7"`
	NewSlots    []string `json:"newSlots"`
}

// CreateSuspensionBody asks to pause an enrollment.
type CreateSuspensionBody struct {
	EnrollmentID string `json:"enrollmentId" validate:"required"`
	Reason       string `json:"reason" validate:"required"`
}

// QuotaUsageResponse reports the monthly adjustment allowance state.
type QuotaUsageResponse struct {
	Used      int    `json:"used"`
	Allowance int    `json:"allowance"`
	MonthKey  string `json:"monthKey"`
	Over      bool   `json:"over"`
}
