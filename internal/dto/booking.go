package dto

// CreateBookingRequestBody creates a trial, single or recurring booking
// request.
type CreateBookingRequestBody struct {
	TeacherID string `json:"teacherId" validate:"required"`
	CourseID  string `json:"courseId"`
	Kind      string `json:"kind" validate:"required,oneof=TRIAL SINGLE RECURRING"`

	// Trial and single bookings.
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Slot string `json:"slot"`

	// Recurring bookings.
	Weekdays   []int    `json:"weekdays" validate:"omitempty,dive,min=1,max=7"`
	Slots      []string `json:"slots"`
	RangeStart string   `json:"rangeStart" validate:"omitempty,datetime=2006-01-02"`
	RangeEnd   string   `json:"rangeEnd" validate:"omitempty,datetime=2006-01-02"`
	TotalTimes int      `json:"totalTimes" validate:"omitempty,min=1"`
}

// BookingListQuery filters booking requests.
type BookingListQuery struct {
	Status    string `form:"status" validate:"omitempty,oneof=PENDING APPROVED REJECTED CANCELLED"`
	TeacherID string `form:"teacherId"`
	StudentID string `form:"studentId"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}
