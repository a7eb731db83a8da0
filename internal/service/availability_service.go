package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tutorhive/tutorhive-api/internal/models"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
)

type availabilityDeclarationRepository interface {
	ListPatterns(ctx context.Context, teacherID string) ([]models.TeacherAvailabilityPattern, error)
	FindPattern(ctx context.Context, teacherID string, weekday int) (*models.TeacherAvailabilityPattern, error)
	UpsertPattern(ctx context.Context, pattern *models.TeacherAvailabilityPattern) error
	FindOverride(ctx context.Context, teacherID string, date time.Time) (*models.DailyAvailabilityOverride, error)
	UpsertOverride(ctx context.Context, override *models.DailyAvailabilityOverride) error
}

type busyTickReader interface {
	Get(ctx context.Context, teacherID string, date time.Time) (map[int]bool, error)
}

type trialSessionReader interface {
	ListActiveByTeacherDate(ctx context.Context, teacherID string, date time.Time) ([]models.Session, error)
}

type pendingTrialReader interface {
	ListPendingTrialsByTeacherDate(ctx context.Context, teacherID string, date time.Time) ([]models.BookingRequest, error)
}

// AvailabilityService computes per-day slot availability from the
// teacher's declared pattern, the busy index and in-flight trial holds.
type AvailabilityService struct {
	declarations availabilityDeclarationRepository
	busy         busyTickReader
	sessions     trialSessionReader
	trialHolds   pendingTrialReader
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewAvailabilityService wires the availability engine.
func NewAvailabilityService(
	declarations availabilityDeclarationRepository,
	busy busyTickReader,
	sessions trialSessionReader,
	trialHolds pendingTrialReader,
	validate *validator.Validate,
	logger *zap.Logger,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		declarations: declarations,
		busy:         busy,
		sessions:     sessions,
		trialHolds:   trialHolds,
		validator:    validate,
		logger:       logger,
	}
}

// DeclaredFor resolves the teacher's declared availability for a date.
// A daily override replaces the weekly pattern entirely; absence of
// both means the teacher is unavailable that day.
func (s *AvailabilityService) DeclaredFor(ctx context.Context, teacherID string, date time.Time) (models.DeclaredAvailability, error) {
	override, err := s.declarations.FindOverride(ctx, teacherID, date)
	if err != nil {
		return models.DeclaredAvailability{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability override")
	}
	if override != nil {
		ranges, err := override.Slots.Ranges()
		if err != nil {
			return models.DeclaredAvailability{}, err
		}
		return models.DeclaredAvailability{Slots: ranges}, nil
	}

	pattern, err := s.declarations.FindPattern(ctx, teacherID, models.WeekdayOf(date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DeclaredAvailability{}, nil
		}
		return models.DeclaredAvailability{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability pattern")
	}
	ranges, err := pattern.Slots.Ranges()
	if err != nil {
		return models.DeclaredAvailability{}, err
	}
	return models.DeclaredAvailability{Slots: ranges}, nil
}

// ComputeDayAvailability produces the formal-slot and trial-tick
// availability picture for one teacher/day. The segment filter narrows
// which formal slots are evaluated without changing any semantics.
func (s *AvailabilityService) ComputeDayAvailability(ctx context.Context, teacherID string, date time.Time, segment models.Segment) (*models.DayAvailability, error) {
	declared, err := s.DeclaredFor(ctx, teacherID, date)
	if err != nil {
		return nil, err
	}

	busyTicks, err := s.busy.Get(ctx, teacherID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load busy index")
	}

	trialTicks, err := s.scheduledTrialTicks(ctx, teacherID, date)
	if err != nil {
		return nil, err
	}

	pendingTicks, err := s.pendingTrialTicks(ctx, teacherID, date)
	if err != nil {
		return nil, err
	}

	// Busy ticks occupied by a trial session are reported as trial
	// overlap, not as a regular busy conflict.
	formalBusy := make(map[int]bool, len(busyTicks))
	for t := range busyTicks {
		if !trialTicks[t] {
			formalBusy[t] = true
		}
	}

	result := &models.DayAvailability{
		TeacherID: teacherID,
		Date:      date.Format(models.DateLayout),
	}

	for _, raw := range models.FormalSlotsFor(segment) {
		slot := models.MustParseSlot(raw)
		entry := models.FormalSlotAvailability{Slot: raw, Available: true}

		if !declared.Covers(slot) {
			entry.Reasons = append(entry.Reasons, models.ReasonTeacherUnavailable)
		}
		if overlapsSet(slot, formalBusy) {
			entry.Reasons = append(entry.Reasons, models.ReasonBusy)
		}
		if overlapsSet(slot, trialTicks) {
			entry.Reasons = append(entry.Reasons, models.ReasonScheduledTrial)
		}
		if overlapsSet(slot, pendingTicks) {
			entry.Reasons = append(entry.Reasons, models.ReasonPendingTrial)
		}
		entry.Available = len(entry.Reasons) == 0
		result.FormalSlots = append(result.FormalSlots, entry)

		for _, tick := range slot.Ticks() {
			trial := models.TrialSlotAvailability{Slot: models.TrialSlotAt(tick).String(), Available: true}
			if !declared.Covers(slot) {
				trial.Reasons = append(trial.Reasons, models.ReasonTeacherUnavailable)
			}
			if formalBusy[tick] {
				trial.Reasons = append(trial.Reasons, models.ReasonBusy)
			}
			if pendingTicks[tick] {
				trial.Reasons = append(trial.Reasons, models.ReasonPendingTrial)
			}
			// A teacher never holds two trials in the same tick, but
			// trials in distinct ticks of one formal slot coexist.
			if trialTicks[tick] {
				trial.Reasons = append(trial.Reasons, models.ReasonDuplicateTrialSlot)
			}
			trial.Available = len(trial.Reasons) == 0
			result.TrialSlots = append(result.TrialSlots, trial)
		}
	}

	return result, nil
}

// ListWeeklyPattern returns every declared weekday row for a teacher.
func (s *AvailabilityService) ListWeeklyPattern(ctx context.Context, teacherID string) ([]models.TeacherAvailabilityPattern, error) {
	patterns, err := s.declarations.ListPatterns(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability patterns")
	}
	return patterns, nil
}

// UpsertWeeklyPattern replaces the declared slots for one weekday.
func (s *AvailabilityService) UpsertWeeklyPattern(ctx context.Context, teacherID string, weekday int, slots []string) error {
	if weekday < 1 || weekday > 7 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("weekday %d outside 1-7", weekday))
	}
	if err := validateSlotStrings(slots); err != nil {
		return err
	}
	pattern := &models.TeacherAvailabilityPattern{
		TeacherID: teacherID,
		Weekday:   weekday,
		Slots:     models.SlotList(slots),
	}
	if err := s.declarations.UpsertPattern(ctx, pattern); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability pattern")
	}
	return nil
}

// UpsertDailyOverride replaces the declared slots for one calendar day.
func (s *AvailabilityService) UpsertDailyOverride(ctx context.Context, teacherID string, date time.Time, slots []string) error {
	if err := validateSlotStrings(slots); err != nil {
		return err
	}
	override := &models.DailyAvailabilityOverride{
		TeacherID: teacherID,
		Date:      date,
		Slots:     models.SlotList(slots),
	}
	if err := s.declarations.UpsertOverride(ctx, override); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability override")
	}
	return nil
}

func (s *AvailabilityService) scheduledTrialTicks(ctx context.Context, teacherID string, date time.Time) (map[int]bool, error) {
	sessions, err := s.sessions.ListActiveByTeacherDate(ctx, teacherID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	ticks := make(map[int]bool)
	for _, session := range sessions {
		if !session.IsTrial {
			continue
		}
		for _, t := range session.Slot().Ticks() {
			ticks[t] = true
		}
	}
	return ticks, nil
}

func (s *AvailabilityService) pendingTrialTicks(ctx context.Context, teacherID string, date time.Time) (map[int]bool, error) {
	if s.trialHolds == nil {
		return map[int]bool{}, nil
	}
	requests, err := s.trialHolds.ListPendingTrialsByTeacherDate(ctx, teacherID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending trial holds")
	}
	ticks := make(map[int]bool)
	for _, request := range requests {
		if request.Slot == "" {
			continue
		}
		slot, err := models.ParseSlot(request.Slot)
		if err != nil {
			s.logger.Warn("pending trial request with malformed slot", zap.String("request_id", request.ID), zap.Error(err))
			continue
		}
		for _, t := range slot.Ticks() {
			ticks[t] = true
		}
	}
	return ticks, nil
}

func validateSlotStrings(slots []string) error {
	for _, raw := range slots {
		if _, err := models.ParseSlot(raw); err != nil {
			return err
		}
	}
	return nil
}

func overlapsSet(slot models.SlotRange, set map[int]bool) bool {
	for t := slot.Start; t < slot.End; t++ {
		if set[t] {
			return true
		}
	}
	return false
}
