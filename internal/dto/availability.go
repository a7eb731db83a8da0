package dto

// WeeklyPatternBody declares a teacher's recurring slots for one
// weekday.
type WeeklyPatternBody struct {
	Weekday int      `json:"weekday" validate:"required,min=1,max=7"`
	Slots   []string `json:"slots" validate:"required"`
}

// DailyOverrideBody replaces the declared slots for one calendar date.
type DailyOverrideBody struct {
	Date  string   `json:"date" validate:"required,datetime=2006-01-02"`
	Slots []string `json:"slots" validate:"required"`
}

// DayAvailabilityQuery selects the day view.
type DayAvailabilityQuery struct {
	Date    string `form:"date" validate:"required,datetime=2006-01-02"`
	Segment string `form:"segment" validate:"omitempty,oneof=morning afternoon evening"`
}
