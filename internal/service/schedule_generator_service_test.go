package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhive/tutorhive-api/internal/models"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
)

type stubConflictSource struct {
	teacherBusy map[string][]models.Session
	studentBusy map[string][]models.Session
}

func conflictKey(actorID string, date time.Time, startTick int) string {
	return fmt.Sprintf("%s|%s|%d", actorID, date.Format(models.DateLayout), startTick)
}

func (s *stubConflictSource) FindTeacherConflicts(_ context.Context, teacherID string, date time.Time, startTick, _ int) ([]models.Session, error) {
	return s.teacherBusy[conflictKey(teacherID, date, startTick)], nil
}

func (s *stubConflictSource) FindStudentConflicts(_ context.Context, studentID string, date time.Time, startTick, _ int) ([]models.Session, error) {
	return s.studentBusy[conflictKey(studentID, date, startTick)], nil
}

func eveningDeclarations(t *testing.T) *fixedDeclarations {
	t.Helper()
	return &fixedDeclarations{declared: declaredSlots(t, "08:00-10:00", "18:00-20:00")}
}

func fourWeekInput(t *testing.T, totalTimes int) GeneratePlanInput {
	t.Helper()
	start, err := time.Parse(models.DateLayout, "2024-03-04")
	require.NoError(t, err)
	end, err := time.Parse(models.DateLayout, "2024-03-31")
	require.NoError(t, err)
	return GeneratePlanInput{
		TeacherID:  "teacher-1",
		StudentID:  "student-1",
		Weekdays:   []int{1, 3, 5},
		Slots:      []string{"18:00-20:00"},
		RangeStart: start,
		RangeEnd:   end,
		TotalTimes: totalTimes,
	}
}

func TestGeneratePlanMonWedFriTenSessions(t *testing.T) {
	svc := NewScheduleGeneratorService(&stubConflictSource{}, eveningDeclarations(t), nil)

	plan, err := svc.GeneratePlan(context.Background(), fourWeekInput(t, 10))
	require.NoError(t, err)
	require.Len(t, plan, 10)

	assert.Equal(t, "2024-03-04", plan[0].Date.Format(models.DateLayout))
	assert.Equal(t, "2024-03-06", plan[1].Date.Format(models.DateLayout))
	assert.Equal(t, "2024-03-08", plan[2].Date.Format(models.DateLayout))
	assert.Equal(t, "2024-03-25", plan[9].Date.Format(models.DateLayout))

	for i, session := range plan {
		assert.Equal(t, i+1, session.SessionNumber)
		assert.Equal(t, "18:00-20:00", session.SlotString)
		if i > 0 {
			assert.True(t, plan[i-1].Date.Before(session.Date))
		}
	}
}

func TestGeneratePlanInsufficientSlots(t *testing.T) {
	svc := NewScheduleGeneratorService(&stubConflictSource{}, eveningDeclarations(t), nil)

	plan, err := svc.GeneratePlan(context.Background(), fourWeekInput(t, 20))
	require.Error(t, err)
	assert.Nil(t, plan)

	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, appErrors.ErrInsufficientSlots.Code, typed.Code)

	var detail *models.InsufficientSlotsError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, 20, detail.Requested)
	assert.Equal(t, 12, detail.FoundCount)
}

func TestGeneratePlanDeterministic(t *testing.T) {
	svc := NewScheduleGeneratorService(&stubConflictSource{}, eveningDeclarations(t), nil)

	first, err := svc.GeneratePlan(context.Background(), fourWeekInput(t, 10))
	require.NoError(t, err)
	second, err := svc.GeneratePlan(context.Background(), fourWeekInput(t, 10))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGeneratePlanSkipsConflictedDates(t *testing.T) {
	busyDate, err := time.Parse(models.DateLayout, "2024-03-06")
	require.NoError(t, err)
	source := &stubConflictSource{
		teacherBusy: map[string][]models.Session{
			conflictKey("teacher-1", busyDate, 36): {{ID: "s-1", EnrollmentID: "other"}},
		},
	}
	svc := NewScheduleGeneratorService(source, eveningDeclarations(t), nil)

	plan, err := svc.GeneratePlan(context.Background(), fourWeekInput(t, 10))
	require.NoError(t, err)
	require.Len(t, plan, 10)
	for _, session := range plan {
		assert.NotEqual(t, "2024-03-06", session.Date.Format(models.DateLayout))
	}
	// Numbering closes the gap left by the skipped date.
	assert.Equal(t, "2024-03-08", plan[1].Date.Format(models.DateLayout))
	assert.Equal(t, 2, plan[1].SessionNumber)
}

func TestGeneratePlanIgnoresOwnEnrollmentConflicts(t *testing.T) {
	busyDate, err := time.Parse(models.DateLayout, "2024-03-04")
	require.NoError(t, err)
	source := &stubConflictSource{
		teacherBusy: map[string][]models.Session{
			conflictKey("teacher-1", busyDate, 36): {{ID: "s-1", EnrollmentID: "enr-1"}},
		},
	}
	svc := NewScheduleGeneratorService(source, eveningDeclarations(t), nil)

	input := fourWeekInput(t, 10)
	input.IgnoreEnrollmentID = "enr-1"
	plan, err := svc.GeneratePlan(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", plan[0].Date.Format(models.DateLayout))
}

func TestGeneratePlanSlotOrderIsAuthoritative(t *testing.T) {
	svc := NewScheduleGeneratorService(&stubConflictSource{}, eveningDeclarations(t), nil)

	input := fourWeekInput(t, 4)
	input.Weekdays = []int{1}
	input.Slots = []string{"18:00-20:00", "08:00-10:00"}
	plan, err := svc.GeneratePlan(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, plan, 4)
	// Both slots on the first Monday, in request order, before the
	// walk advances to the next date.
	assert.Equal(t, "2024-03-04", plan[0].Date.Format(models.DateLayout))
	assert.Equal(t, "18:00-20:00", plan[0].SlotString)
	assert.Equal(t, "2024-03-04", plan[1].Date.Format(models.DateLayout))
	assert.Equal(t, "08:00-10:00", plan[1].SlotString)
	assert.Equal(t, "2024-03-11", plan[2].Date.Format(models.DateLayout))
}

func TestGeneratePlanRejectsOverlappingSlotList(t *testing.T) {
	svc := NewScheduleGeneratorService(&stubConflictSource{}, eveningDeclarations(t), nil)

	for _, slots := range [][]string{
		{"18:00-20:00", "19:00-21:00"},
		{"18:00-20:00", "18:00-20:00"},
	} {
		input := fourWeekInput(t, 4)
		input.Slots = slots
		_, err := svc.GeneratePlan(context.Background(), input)
		require.Error(t, err, "%v", slots)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestGeneratePlanSkipsUndeclaredSlots(t *testing.T) {
	svc := NewScheduleGeneratorService(&stubConflictSource{},
		&fixedDeclarations{declared: declaredSlots(t, "18:00-20:00")}, nil)

	input := fourWeekInput(t, 4)
	input.Weekdays = []int{1}
	input.Slots = []string{"08:00-10:00", "18:00-20:00"}
	plan, err := svc.GeneratePlan(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, plan, 4)
	for _, session := range plan {
		assert.Equal(t, "18:00-20:00", session.SlotString)
	}
}

func TestGeneratePlanNothingDeclared(t *testing.T) {
	svc := NewScheduleGeneratorService(&stubConflictSource{},
		&fixedDeclarations{declared: models.DeclaredAvailability{}}, nil)

	_, err := svc.GeneratePlan(context.Background(), fourWeekInput(t, 10))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInsufficientSlots.Code, appErrors.FromError(err).Code)

	var detail *models.InsufficientSlotsError
	require.True(t, errors.As(err, &detail))
	assert.Zero(t, detail.FoundCount)
}

func TestGeneratePlanValidation(t *testing.T) {
	svc := NewScheduleGeneratorService(&stubConflictSource{}, eveningDeclarations(t), nil)

	cases := []func(*GeneratePlanInput){
		func(in *GeneratePlanInput) { in.Weekdays = nil },
		func(in *GeneratePlanInput) { in.Weekdays = []int{0} },
		func(in *GeneratePlanInput) { in.Weekdays = []int{8} },
		func(in *GeneratePlanInput) { in.Slots = nil },
		func(in *GeneratePlanInput) { in.Slots = []string{"8:00-10:00"} },
		func(in *GeneratePlanInput) { in.RangeEnd = in.RangeStart.AddDate(0, 0, -1) },
		func(in *GeneratePlanInput) { in.TotalTimes = 0 },
	}
	for i, mutate := range cases {
		input := fourWeekInput(t, 5)
		mutate(&input)
		_, err := svc.GeneratePlan(context.Background(), input)
		assert.Error(t, err, "case %d", i)
	}
}
