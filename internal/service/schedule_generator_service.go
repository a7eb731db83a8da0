package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutorhive/tutorhive-api/internal/models"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
)

type generatorConflictSource interface {
	FindTeacherConflicts(ctx context.Context, teacherID string, date time.Time, startTick, endTick int) ([]models.Session, error)
	FindStudentConflicts(ctx context.Context, studentID string, date time.Time, startTick, endTick int) ([]models.Session, error)
}

// GeneratePlanInput describes a recurring expansion request.
type GeneratePlanInput struct {
	TeacherID  string
	StudentID  string
	Weekdays   []int
	Slots      []string
	RangeStart time.Time
	RangeEnd   time.Time
	TotalTimes int

	// StartNumber seeds session numbering when extending an existing
	// enrollment; zero means start at 1.
	StartNumber int
	// IgnoreEnrollmentID skips conflicts owned by this enrollment, so
	// regenerating an enrollment's own forward pattern never collides
	// with the sessions it replaces.
	IgnoreEnrollmentID string
}

// ScheduleGeneratorService expands a weekday and slot pattern over a
// date range into concrete dated sessions. Candidates are confined to
// the teacher's declared availability for each date.
//
// The walk is strictly deterministic: calendar order over dates, the
// request's slot-list order within a date, no reordering. Identical
// input against an identical busy calendar and declaration set always
// yields an identical plan, which makes retries idempotent.
type ScheduleGeneratorService struct {
	conflicts    generatorConflictSource
	declarations declaredResolver
	logger       *zap.Logger
}

// NewScheduleGeneratorService wires the generator.
func NewScheduleGeneratorService(conflicts generatorConflictSource, declarations declaredResolver, logger *zap.Logger) *ScheduleGeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleGeneratorService{conflicts: conflicts, declarations: declarations, logger: logger}
}

// GeneratePlan returns the full ordered plan or fails without ever
// producing a partial one. When the range exhausts before TotalTimes
// sessions are found the error wraps an InsufficientSlotsError with
// the running count.
func (s *ScheduleGeneratorService) GeneratePlan(ctx context.Context, input GeneratePlanInput) ([]models.PlannedSession, error) {
	weekdaySet, slots, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	startNumber := input.StartNumber
	if startNumber < 1 {
		startNumber = 1
	}

	plan := make([]models.PlannedSession, 0, input.TotalTimes)
	for date := input.RangeStart; !date.After(input.RangeEnd); date = date.AddDate(0, 0, 1) {
		if !weekdaySet[models.WeekdayOf(date)] {
			continue
		}
		declared, err := s.declarations.DeclaredFor(ctx, input.TeacherID, date)
		if err != nil {
			return nil, err
		}
		for i, slot := range slots {
			if !declared.Covers(slot) {
				continue
			}
			free, err := s.slotFree(ctx, input, date, slot)
			if err != nil {
				return nil, err
			}
			if !free {
				continue
			}
			plan = append(plan, models.PlannedSession{
				Date:          date,
				Slot:          slot,
				SlotString:    input.Slots[i],
				SessionNumber: startNumber + len(plan),
			})
			if len(plan) == input.TotalTimes {
				return plan, nil
			}
		}
	}

	detail := &models.InsufficientSlotsError{Requested: input.TotalTimes, FoundCount: len(plan)}
	return nil, appErrors.Wrap(detail, appErrors.ErrInsufficientSlots.Code, appErrors.ErrInsufficientSlots.Status,
		fmt.Sprintf("only %d of %d requested sessions available in range", detail.FoundCount, detail.Requested))
}

func (s *ScheduleGeneratorService) validate(input GeneratePlanInput) (map[int]bool, []models.SlotRange, error) {
	if len(input.Weekdays) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "weekday list must not be empty")
	}
	weekdaySet := make(map[int]bool, len(input.Weekdays))
	for _, weekday := range input.Weekdays {
		if weekday < 1 || weekday > 7 {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("weekday %d outside 1-7", weekday))
		}
		weekdaySet[weekday] = true
	}
	if len(input.Slots) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "slot list must not be empty")
	}
	slots, err := models.ParseSlots(input.Slots)
	if err != nil {
		return nil, nil, err
	}
	if input.RangeEnd.Before(input.RangeStart) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "range end precedes range start")
	}
	if input.TotalTimes < 1 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "total session count must be at least 1")
	}
	return weekdaySet, slots, nil
}

func (s *ScheduleGeneratorService) slotFree(ctx context.Context, input GeneratePlanInput, date time.Time, slot models.SlotRange) (bool, error) {
	teacherConflicts, err := s.conflicts.FindTeacherConflicts(ctx, input.TeacherID, date, slot.Start, slot.End)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher conflicts")
	}
	if hasForeignConflict(teacherConflicts, input.IgnoreEnrollmentID) {
		return false, nil
	}

	studentConflicts, err := s.conflicts.FindStudentConflicts(ctx, input.StudentID, date, slot.Start, slot.End)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student conflicts")
	}
	return !hasForeignConflict(studentConflicts, input.IgnoreEnrollmentID), nil
}

func hasForeignConflict(conflicts []models.Session, ignoreEnrollmentID string) bool {
	for _, session := range conflicts {
		if ignoreEnrollmentID != "" && session.EnrollmentID == ignoreEnrollmentID {
			continue
		}
		return true
	}
	return false
}
