package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/tutorhive/tutorhive-api/internal/models"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
	"github.com/tutorhive/tutorhive-api/pkg/lock"
)

type bookingRequestStore interface {
	FindByID(ctx context.Context, id string) (*models.BookingRequest, error)
	List(ctx context.Context, filter models.BookingRequestFilter) ([]models.BookingRequest, int, error)
	Create(ctx context.Context, request *models.BookingRequest) error
	UpdateStatus(ctx context.Context, id string, from, to models.BookingRequestStatus) (bool, error)
	UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, from, to models.BookingRequestStatus) (bool, error)
	ExistsTrialByStudent(ctx context.Context, studentID string) (bool, error)
}

type bookingSessionStore interface {
	FindTeacherConflicts(ctx context.Context, teacherID string, date time.Time, startTick, endTick int) ([]models.Session, error)
	FindStudentConflicts(ctx context.Context, studentID string, date time.Time, startTick, endTick int) ([]models.Session, error)
	CountTrialsByStudent(ctx context.Context, studentID string, countCancelled bool, since *time.Time) (int, error)
	TrialExistsAt(ctx context.Context, teacherID string, date time.Time, startTick int) (bool, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, sessions []models.Session) error
	CancelForwardByEnrollment(ctx context.Context, enrollmentID string, from time.Time) ([]models.Session, error)
}

type bookingEnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type planGenerator interface {
	GeneratePlan(ctx context.Context, input GeneratePlanInput) ([]models.PlannedSession, error)
}

type declaredResolver interface {
	DeclaredFor(ctx context.Context, teacherID string, date time.Time) (models.DeclaredAvailability, error)
}

type busyIndexUpdater interface {
	Invalidate(ctx context.Context, teacherID string, date time.Time) error
	ApplyDelta(ctx context.Context, teacherID string, date time.Time, add, remove []int)
}

type resourceLocker interface {
	TryLockRetry(ctx context.Context, key, token string, ttl time.Duration, retries int, interval time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) (bool, error)
}

type bookingTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type notificationEmitter interface {
	Emit(event NotificationEvent)
}

// BookingWorkflowConfig tunes lock behaviour and trial eligibility.
type BookingWorkflowConfig struct {
	LockTTL           time.Duration
	LockRetries       int
	LockRetryInterval time.Duration

	// TrialWindowDays restricts the trial-uniqueness check to a
	// trailing window; zero means the trial is once per lifetime.
	TrialWindowDays int
	// CountCancelledTrial makes a cancelled trial count against
	// eligibility.
	CountCancelledTrial bool
}

// CreateBookingInput is the student-submitted booking intent.
type CreateBookingInput struct {
	StudentID string
	TeacherID string `validate:"required"`
	CourseID  string
	Kind      models.BookingRequestKind `validate:"required"`

	Date *time.Time
	Slot string

	Weekdays   []int
	Slots      []string
	RangeStart *time.Time
	RangeEnd   *time.Time
	TotalTimes int
}

// BookingService orchestrates the booking request lifecycle: create as
// pending without touching the calendar, then commit under the
// distributed lock at approval time.
type BookingService struct {
	requests      bookingRequestStore
	sessions      bookingSessionStore
	enrollments   bookingEnrollmentStore
	generator     planGenerator
	declarations  declaredResolver
	busy          busyIndexUpdater
	locker        resourceLocker
	tx            bookingTxProvider
	notifications notificationEmitter
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           BookingWorkflowConfig
	now           func() time.Time
}

// NewBookingService wires the booking workflow.
func NewBookingService(
	requests bookingRequestStore,
	sessions bookingSessionStore,
	enrollments bookingEnrollmentStore,
	generator planGenerator,
	declarations declaredResolver,
	busy busyIndexUpdater,
	locker resourceLocker,
	tx bookingTxProvider,
	notifications notificationEmitter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg BookingWorkflowConfig,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.LockRetries < 0 {
		cfg.LockRetries = 0
	}
	if cfg.LockRetryInterval <= 0 {
		cfg.LockRetryInterval = 100 * time.Millisecond
	}
	return &BookingService{
		requests:      requests,
		sessions:      sessions,
		enrollments:   enrollments,
		generator:     generator,
		declarations:  declarations,
		busy:          busy,
		locker:        locker,
		tx:            tx,
		notifications: notifications,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

// CreateBookingRequest validates the intent and persists it as
// pending. No calendar resource is claimed yet, so no lock is taken.
func (s *BookingService) CreateBookingRequest(ctx context.Context, input CreateBookingInput) (*models.BookingRequest, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking request payload")
	}

	request := &models.BookingRequest{
		StudentID: input.StudentID,
		TeacherID: input.TeacherID,
		CourseID:  input.CourseID,
		Kind:      input.Kind,
		Status:    models.BookingStatusPending,
	}

	switch input.Kind {
	case models.BookingKindSingle:
		if _, err := s.requireDateAndSlot(input); err != nil {
			return nil, err
		}
		request.Date = input.Date
		request.Slot = input.Slot

	case models.BookingKindTrial:
		slot, err := s.requireDateAndSlot(input)
		if err != nil {
			return nil, err
		}
		if slot.End-slot.Start != 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "trial slot must span exactly 30 minutes")
		}
		if err := s.checkTrialEligibility(ctx, input.StudentID); err != nil {
			return nil, err
		}
		request.Date = input.Date
		request.Slot = input.Slot

	case models.BookingKindRecurring:
		if err := s.validateRecurring(input); err != nil {
			return nil, err
		}
		request.Weekdays = models.IntList(input.Weekdays)
		request.Slots = models.SlotList(input.Slots)
		request.RangeStart = input.RangeStart
		request.RangeEnd = input.RangeEnd
		request.TotalTimes = input.TotalTimes

	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown booking kind %q", input.Kind))
	}

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking request")
	}
	return request, nil
}

// GetBookingRequest loads one request.
func (s *BookingService) GetBookingRequest(ctx context.Context, id string) (*models.BookingRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking request")
	}
	return request, nil
}

// ListBookingRequests returns requests matching the filter.
func (s *BookingService) ListBookingRequests(ctx context.Context, filter models.BookingRequestFilter) ([]models.BookingRequest, int, error) {
	return s.requests.List(ctx, filter)
}

// ApproveBookingRequest commits a pending request: lock, authoritative
// re-check, enrollment plus sessions in one transaction, busy-index
// delta, unlock. On a conflict the request stays pending so the
// approver can retry with a fresh choice or reject.
func (s *BookingService) ApproveBookingRequest(ctx context.Context, requestID string) (*models.Enrollment, error) {
	request, err := s.GetBookingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.BookingStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("booking request is %s, not pending", request.Status))
	}

	var enrollment *models.Enrollment
	switch request.Kind {
	case models.BookingKindRecurring:
		enrollment, err = s.approveRecurring(ctx, request)
	default:
		enrollment, err = s.approveSingle(ctx, request)
	}
	if err != nil {
		s.recordOutcome(err)
		return nil, err
	}

	s.metrics.RecordBookingOutcome("booking", "approved")
	s.notifications.Emit(NotificationEvent{
		Type:         EventBookingApproved,
		RequestID:    request.ID,
		EnrollmentID: enrollment.ID,
		StudentID:    request.StudentID,
		TeacherID:    request.TeacherID,
	})
	return enrollment, nil
}

// RejectBookingRequest moves a pending request to rejected.
func (s *BookingService) RejectBookingRequest(ctx context.Context, requestID string) error {
	request, err := s.GetBookingRequest(ctx, requestID)
	if err != nil {
		return err
	}
	ok, err := s.requests.UpdateStatus(ctx, requestID, models.BookingStatusPending, models.BookingStatusRejected)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject booking request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "booking request is no longer pending")
	}
	s.notifications.Emit(NotificationEvent{
		Type:      EventBookingRejected,
		RequestID: request.ID,
		StudentID: request.StudentID,
		TeacherID: request.TeacherID,
	})
	return nil
}

// CancelBookingRequest lets the owning student withdraw a pending
// request.
func (s *BookingService) CancelBookingRequest(ctx context.Context, requestID, studentID string) error {
	request, err := s.GetBookingRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the requesting student may cancel")
	}
	ok, err := s.requests.UpdateStatus(ctx, requestID, models.BookingStatusPending, models.BookingStatusCancelled)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "only pending booking requests can be cancelled")
	}
	s.notifications.Emit(NotificationEvent{
		Type:      EventBookingCancelled,
		RequestID: request.ID,
		StudentID: request.StudentID,
		TeacherID: request.TeacherID,
	})
	return nil
}

// CancelEnrollment cancels an enrollment and cascades to its future
// scheduled sessions, releasing their busy ticks.
func (s *BookingService) CancelEnrollment(ctx context.Context, enrollmentID string) error {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment already cancelled")
	}

	if err := s.enrollments.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}

	cancelled, err := s.sessions.CancelForwardByEnrollment(ctx, enrollmentID, s.today())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment sessions")
	}
	s.releaseBusyTicks(ctx, enrollment.TeacherID, cancelled)

	s.notifications.Emit(NotificationEvent{
		Type:         EventEnrollmentCancel,
		EnrollmentID: enrollmentID,
		StudentID:    enrollment.StudentID,
		TeacherID:    enrollment.TeacherID,
	})
	return nil
}

func (s *BookingService) approveSingle(ctx context.Context, request *models.BookingRequest) (*models.Enrollment, error) {
	if request.Date == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking request has no date")
	}
	slot, err := models.ParseSlot(request.Slot)
	if err != nil {
		return nil, err
	}
	date := *request.Date

	key := lock.ResourceKey(request.TeacherID, date.Format(models.DateLayout), request.Slot)
	token := uuid.NewString()
	if err := s.acquire(ctx, key, token); err != nil {
		return nil, err
	}
	defer s.release(ctx, key, token)

	if err := s.recheckSingle(ctx, request, date, slot); err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID:        request.StudentID,
		TeacherID:        request.TeacherID,
		CourseID:         request.CourseID,
		BookingRequestID: request.ID,
		TotalSessions:    1,
		Status:           models.EnrollmentStatusActive,
	}
	session := models.Session{
		TeacherID:     request.TeacherID,
		StudentID:     request.StudentID,
		Date:          date,
		StartTick:     slot.Start,
		EndTick:       slot.End,
		SessionNumber: 1,
		Status:        models.SessionStatusScheduled,
		IsTrial:       request.Kind == models.BookingKindTrial,
	}

	if err := s.persistApproval(ctx, request.ID, enrollment, []models.Session{session}); err != nil {
		return nil, err
	}

	s.busy.ApplyDelta(ctx, request.TeacherID, date, slot.Ticks(), nil)
	return enrollment, nil
}

func (s *BookingService) approveRecurring(ctx context.Context, request *models.BookingRequest) (*models.Enrollment, error) {
	if request.RangeStart == nil || request.RangeEnd == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recurring booking request has no date range")
	}

	// Coarse per-day locks over every candidate date, acquired in
	// calendar order so concurrent recurring commits cannot deadlock.
	dates := candidateDates(*request.RangeStart, *request.RangeEnd, request.Weekdays)
	if len(dates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no candidate dates in range")
	}
	token := uuid.NewString()
	locked, err := s.acquireAll(ctx, request.TeacherID, dates, token)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, key := range locked {
			s.release(ctx, key, token)
		}
	}()

	// Generation under the locks is the authoritative conflict check.
	plan, err := s.generator.GeneratePlan(ctx, GeneratePlanInput{
		TeacherID:  request.TeacherID,
		StudentID:  request.StudentID,
		Weekdays:   request.Weekdays,
		Slots:      request.Slots,
		RangeStart: *request.RangeStart,
		RangeEnd:   *request.RangeEnd,
		TotalTimes: request.TotalTimes,
	})
	if err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID:        request.StudentID,
		TeacherID:        request.TeacherID,
		CourseID:         request.CourseID,
		BookingRequestID: request.ID,
		TotalSessions:    len(plan),
		Status:           models.EnrollmentStatusActive,
	}
	sessions := make([]models.Session, 0, len(plan))
	for _, planned := range plan {
		sessions = append(sessions, models.Session{
			TeacherID:     request.TeacherID,
			StudentID:     request.StudentID,
			Date:          planned.Date,
			StartTick:     planned.Slot.Start,
			EndTick:       planned.Slot.End,
			SessionNumber: planned.SessionNumber,
			Status:        models.SessionStatusScheduled,
		})
	}

	if err := s.persistApproval(ctx, request.ID, enrollment, sessions); err != nil {
		return nil, err
	}

	for _, session := range sessions {
		s.busy.ApplyDelta(ctx, request.TeacherID, session.Date, session.Slot().Ticks(), nil)
	}
	return enrollment, nil
}

// recheckSingle is the commit-time availability check. Request-time
// checks are advisory only; this one runs under the lock.
func (s *BookingService) recheckSingle(ctx context.Context, request *models.BookingRequest, date time.Time, slot models.SlotRange) error {
	declared, err := s.declarations.DeclaredFor(ctx, request.TeacherID, date)
	if err != nil {
		return err
	}
	if request.Kind == models.BookingKindTrial {
		formal, ok := models.FormalSlotContaining(slot.Start)
		if !ok || !declared.Covers(formal) {
			return appErrors.Clone(appErrors.ErrSlotUnavailable, "teacher is not available for this trial slot")
		}
		duplicate, err := s.sessions.TrialExistsAt(ctx, request.TeacherID, date, slot.Start)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check trial duplicates")
		}
		if duplicate {
			return appErrors.Clone(appErrors.ErrSlotUnavailable, "a trial already occupies this slot")
		}
	} else if !declared.Covers(slot) {
		return appErrors.Clone(appErrors.ErrSlotUnavailable, "teacher is not available for this slot")
	}

	teacherConflicts, err := s.sessions.FindTeacherConflicts(ctx, request.TeacherID, date, slot.Start, slot.End)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher conflicts")
	}
	if len(teacherConflicts) > 0 {
		return appErrors.Clone(appErrors.ErrSlotUnavailable, "slot no longer available for this teacher")
	}

	studentConflicts, err := s.sessions.FindStudentConflicts(ctx, request.StudentID, date, slot.Start, slot.End)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student conflicts")
	}
	if len(studentConflicts) > 0 {
		return appErrors.Clone(appErrors.ErrSlotUnavailable, "student already has a session in this slot")
	}
	return nil
}

// persistApproval advances the request and materialises the enrollment
// with its sessions in one transaction.
func (s *BookingService) persistApproval(ctx context.Context, requestID string, enrollment *models.Enrollment, sessions []models.Session) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var ok bool
	if ok, err = s.requests.UpdateStatusWithTx(ctx, tx, requestID, models.BookingStatusPending, models.BookingStatusApproved); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve booking request")
	}
	if !ok {
		err = appErrors.Clone(appErrors.ErrConflict, "booking request is no longer pending")
		return err
	}

	if err = s.enrollments.CreateWithTx(ctx, tx, enrollment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	for i := range sessions {
		sessions[i].EnrollmentID = enrollment.ID
	}
	if err = s.sessions.BulkCreateWithTx(ctx, tx, sessions); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sessions")
	}

	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit booking approval")
	}
	return nil
}

func (s *BookingService) acquire(ctx context.Context, key, token string) error {
	start := s.now()
	ok, err := s.locker.TryLockRetry(ctx, key, token, s.cfg.LockTTL, s.cfg.LockRetries, s.cfg.LockRetryInterval)
	wait := s.now().Sub(start)
	if err != nil {
		s.metrics.RecordLockAcquisition(wait, true)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "lock acquisition failed")
	}
	if !ok {
		s.metrics.RecordLockAcquisition(wait, true)
		return appErrors.Clone(appErrors.ErrLockTimeout, fmt.Sprintf("booking lock %s is held", key))
	}
	s.metrics.RecordLockAcquisition(wait, wait > s.cfg.LockRetryInterval)
	return nil
}

func (s *BookingService) acquireAll(ctx context.Context, teacherID string, dates []time.Time, token string) ([]string, error) {
	var locked []string
	for _, date := range dates {
		key := lock.ResourceKey(teacherID, date.Format(models.DateLayout), "")
		if err := s.acquire(ctx, key, token); err != nil {
			for _, held := range locked {
				s.release(ctx, held, token)
			}
			return nil, err
		}
		locked = append(locked, key)
	}
	return locked, nil
}

func (s *BookingService) release(ctx context.Context, key, token string) {
	if _, err := s.locker.Unlock(ctx, key, token); err != nil {
		s.logger.Warn("lock release failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *BookingService) releaseBusyTicks(ctx context.Context, teacherID string, cancelled []models.Session) {
	byDate := make(map[string][]int)
	dates := make(map[string]time.Time)
	for _, session := range cancelled {
		key := session.DateKey()
		byDate[key] = append(byDate[key], session.Slot().Ticks()...)
		dates[key] = session.Date
	}
	for key, ticks := range byDate {
		s.busy.ApplyDelta(ctx, teacherID, dates[key], nil, ticks)
	}
}

func (s *BookingService) checkTrialEligibility(ctx context.Context, studentID string) error {
	pending, err := s.requests.ExistsTrialByStudent(ctx, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check trial requests")
	}
	if pending {
		return appErrors.Clone(appErrors.ErrTrialAlreadyUsed, "a trial request already exists for this student")
	}

	var since *time.Time
	if s.cfg.TrialWindowDays > 0 {
		cutoff := s.now().AddDate(0, 0, -s.cfg.TrialWindowDays)
		since = &cutoff
	}
	count, err := s.sessions.CountTrialsByStudent(ctx, studentID, s.cfg.CountCancelledTrial, since)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check trial history")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrTrialAlreadyUsed, "")
	}
	return nil
}

func (s *BookingService) requireDateAndSlot(input CreateBookingInput) (models.SlotRange, error) {
	if input.Date == nil {
		return models.SlotRange{}, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	return models.ParseSlot(input.Slot)
}

func (s *BookingService) validateRecurring(input CreateBookingInput) error {
	if len(input.Weekdays) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "weekday list must not be empty")
	}
	for _, weekday := range input.Weekdays {
		if weekday < 1 || weekday > 7 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("weekday %d outside 1-7", weekday))
		}
	}
	if len(input.Slots) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "slot list must not be empty")
	}
	if _, err := models.ParseSlots(input.Slots); err != nil {
		return err
	}
	if input.RangeStart == nil || input.RangeEnd == nil {
		return appErrors.Clone(appErrors.ErrValidation, "date range is required")
	}
	if input.RangeEnd.Before(*input.RangeStart) {
		return appErrors.Clone(appErrors.ErrValidation, "range end precedes range start")
	}
	if input.TotalTimes < 1 {
		return appErrors.Clone(appErrors.ErrValidation, "total session count must be at least 1")
	}
	return nil
}

func (s *BookingService) recordOutcome(err error) {
	typed := appErrors.FromError(err)
	switch typed.Code {
	case appErrors.ErrSlotUnavailable.Code, appErrors.ErrInsufficientSlots.Code, appErrors.ErrConflict.Code:
		s.metrics.RecordBookingOutcome("booking", "conflict")
	case appErrors.ErrLockTimeout.Code:
		s.metrics.RecordBookingOutcome("booking", "lock_timeout")
	default:
		s.metrics.RecordBookingOutcome("booking", "error")
	}
}

func (s *BookingService) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func candidateDates(start, end time.Time, weekdays []int) []time.Time {
	set := make(map[int]bool, len(weekdays))
	for _, weekday := range weekdays {
		set[weekday] = true
	}
	var dates []time.Time
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		if set[models.WeekdayOf(date)] {
			dates = append(dates, date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
