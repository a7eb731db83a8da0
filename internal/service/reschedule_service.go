package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/tutorhive/tutorhive-api/internal/models"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
	"github.com/tutorhive/tutorhive-api/pkg/lock"
)

type rescheduleRequestStore interface {
	FindByID(ctx context.Context, id string) (*models.RescheduleRequest, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.RescheduleRequest, error)
	Create(ctx context.Context, request *models.RescheduleRequest) error
	UpdateStatus(ctx context.Context, id string, from, to models.RescheduleRequestStatus) (bool, error)
	UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, from, to models.RescheduleRequestStatus) (bool, error)
}

type rescheduleSessionStore interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindTeacherConflicts(ctx context.Context, teacherID string, date time.Time, startTick, endTick int) ([]models.Session, error)
	FindStudentConflicts(ctx context.Context, studentID string, date time.Time, startTick, endTick int) ([]models.Session, error)
	RescheduleWithTx(ctx context.Context, tx *sqlx.Tx, id string, date time.Time, startTick, endTick int) error
	UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, status models.SessionStatus) error
	ListForwardByEnrollment(ctx context.Context, enrollmentID string, from time.Time) ([]models.Session, error)
	CancelForwardByEnrollmentWithTx(ctx context.Context, tx *sqlx.Tx, enrollmentID string, from time.Time) ([]models.Session, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, sessions []models.Session) error
}

type rescheduleEnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, status models.EnrollmentStatus) error
}

type quotaConsumer interface {
	ConsumeOnApply(ctx context.Context, actorType models.ActorType, actorID, enrollmentID string) (bool, error)
	RollbackOnReject(ctx context.Context, actorType models.ActorType, actorID, enrollmentID string) error
}

// CreateRescheduleInput describes a change request.
type CreateRescheduleInput struct {
	EnrollmentID  string `validate:"required"`
	SessionID     string
	Type          models.RescheduleType `validate:"required"`
	ApplicantType models.ActorType      `validate:"required"`
	ApplicantID   string                `validate:"required"`
	Reason        string

	NewDate *time.Time
	NewSlot string

	NewWeekdays []int
	NewSlots    []string
}

// RescheduleService runs the change-request state machine: quota is
// consumed optimistically at creation, approval re-checks the target
// under the lock, rejection rolls the quota back.
type RescheduleService struct {
	requests      rescheduleRequestStore
	sessions      rescheduleSessionStore
	enrollments   rescheduleEnrollmentStore
	generator     planGenerator
	declarations  declaredResolver
	busy          busyIndexUpdater
	quota         quotaConsumer
	locker        resourceLocker
	tx            bookingTxProvider
	notifications notificationEmitter
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           BookingWorkflowConfig
	now           func() time.Time
}

// NewRescheduleService wires the reschedule workflow.
func NewRescheduleService(
	requests rescheduleRequestStore,
	sessions rescheduleSessionStore,
	enrollments rescheduleEnrollmentStore,
	generator planGenerator,
	declarations declaredResolver,
	busy busyIndexUpdater,
	quota quotaConsumer,
	locker resourceLocker,
	tx bookingTxProvider,
	notifications notificationEmitter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg BookingWorkflowConfig,
) *RescheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.LockRetryInterval <= 0 {
		cfg.LockRetryInterval = 100 * time.Millisecond
	}
	return &RescheduleService{
		requests:      requests,
		sessions:      sessions,
		enrollments:   enrollments,
		generator:     generator,
		declarations:  declarations,
		busy:          busy,
		quota:         quota,
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

// CreateRescheduleRequest validates the change, consumes quota
// optimistically and persists the request as pending. Over-quota is
// flagged, not blocked; the reviewer sees it and decides.
func (s *RescheduleService) CreateRescheduleRequest(ctx context.Context, input CreateRescheduleInput) (*models.RescheduleRequest, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule request payload")
	}

	enrollment, err := s.activeEnrollment(ctx, input.EnrollmentID)
	if err != nil {
		return nil, err
	}

	request := &models.RescheduleRequest{
		EnrollmentID:  input.EnrollmentID,
		Type:          input.Type,
		Status:        models.RescheduleStatusPending,
		ApplicantType: input.ApplicantType,
		ApplicantID:   input.ApplicantID,
		Reason:        input.Reason,
	}

	switch input.Type {
	case models.RescheduleTypeSingle:
		session, err := s.ownedSession(ctx, enrollment, input.SessionID)
		if err != nil {
			return nil, err
		}
		if input.NewDate == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "new date is required")
		}
		if _, err := models.ParseSlot(input.NewSlot); err != nil {
			return nil, err
		}
		request.SessionID = &session.ID
		request.NewDate = input.NewDate
		request.NewSlot = input.NewSlot

	case models.RescheduleTypeRecurring:
		if len(input.NewWeekdays) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "new weekday list must not be empty")
		}
		for _, weekday := range input.NewWeekdays {
			if weekday < 1 || weekday > 7 {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("weekday %d outside 1-7", weekday))
			}
		}
		if len(input.NewSlots) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "new slot list must not be empty")
		}
		if _, err := models.ParseSlots(input.NewSlots); err != nil {
			return nil, err
		}
		request.NewWeekdays = models.IntList(input.NewWeekdays)
		request.NewSlots = models.SlotList(input.NewSlots)

	case models.RescheduleTypeCancel:
		if input.SessionID != "" {
			session, err := s.ownedSession(ctx, enrollment, input.SessionID)
			if err != nil {
				return nil, err
			}
			request.SessionID = &session.ID
		}

	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown reschedule type %q", input.Type))
	}

	over, err := s.quota.ConsumeOnApply(ctx, input.ApplicantType, input.ApplicantID, input.EnrollmentID)
	if err != nil {
		return nil, err
	}
	request.QuotaConsumed = true
	if over {
		s.logger.Info("reschedule request over monthly quota",
			zap.String("enrollment_id", input.EnrollmentID),
			zap.String("applicant_id", input.ApplicantID),
		)
	}

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reschedule request")
	}
	return request, nil
}

// GetRescheduleRequest loads one request.
func (s *RescheduleService) GetRescheduleRequest(ctx context.Context, id string) (*models.RescheduleRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reschedule request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedule request")
	}
	return request, nil
}

// ListByEnrollment returns the change history for an enrollment.
func (s *RescheduleService) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.RescheduleRequest, error) {
	return s.requests.ListByEnrollment(ctx, enrollmentID)
}

// ApproveRescheduleRequest applies a pending change request. On any
// conflict the request stays pending and no state or quota moves.
func (s *RescheduleService) ApproveRescheduleRequest(ctx context.Context, requestID string) error {
	request, err := s.GetRescheduleRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status != models.RescheduleStatusPending {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("reschedule request is %s, not pending", request.Status))
	}
	enrollment, err := s.activeEnrollment(ctx, request.EnrollmentID)
	if err != nil {
		return err
	}

	switch request.Type {
	case models.RescheduleTypeSingle:
		err = s.approveSingleMove(ctx, request, enrollment)
	case models.RescheduleTypeRecurring:
		err = s.approvePatternReplace(ctx, request, enrollment)
	case models.RescheduleTypeCancel:
		err = s.approveCancel(ctx, request, enrollment)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown reschedule type %q", request.Type))
	}
	if err != nil {
		s.recordOutcome(err)
		return err
	}

	s.metrics.RecordBookingOutcome("reschedule", "approved")
	s.notifications.Emit(NotificationEvent{
		Type:         EventRescheduleApproved,
		RequestID:    request.ID,
		EnrollmentID: enrollment.ID,
		StudentID:    enrollment.StudentID,
		TeacherID:    enrollment.TeacherID,
	})
	return nil
}

// RejectRescheduleRequest rejects a pending request and rolls back the
// quota consumed at creation.
func (s *RescheduleService) RejectRescheduleRequest(ctx context.Context, requestID string) error {
	request, err := s.GetRescheduleRequest(ctx, requestID)
	if err != nil {
		return err
	}
	ok, err := s.requests.UpdateStatus(ctx, requestID, models.RescheduleStatusPending, models.RescheduleStatusRejected)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject reschedule request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "reschedule request is no longer pending")
	}

	if request.QuotaConsumed {
		if err := s.quota.RollbackOnReject(ctx, request.ApplicantType, request.ApplicantID, request.EnrollmentID); err != nil {
			s.logger.Error("quota rollback failed", zap.String("request_id", request.ID), zap.Error(err))
		}
	}

	enrollment, err := s.enrollments.FindByID(ctx, request.EnrollmentID)
	if err == nil {
		s.notifications.Emit(NotificationEvent{
			Type:         EventRescheduleRejected,
			RequestID:    request.ID,
			EnrollmentID: enrollment.ID,
			StudentID:    enrollment.StudentID,
			TeacherID:    enrollment.TeacherID,
		})
	}
	return nil
}

// CancelRescheduleRequest lets the applicant withdraw a pending
// request. The quota unit consumed at creation is returned.
func (s *RescheduleService) CancelRescheduleRequest(ctx context.Context, requestID, applicantID string) error {
	request, err := s.GetRescheduleRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.ApplicantID != applicantID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the applicant may cancel")
	}
	ok, err := s.requests.UpdateStatus(ctx, requestID, models.RescheduleStatusPending, models.RescheduleStatusCancelled)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel reschedule request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "only pending reschedule requests can be cancelled")
	}

	if request.QuotaConsumed {
		if err := s.quota.RollbackOnReject(ctx, request.ApplicantType, request.ApplicantID, request.EnrollmentID); err != nil {
			s.logger.Error("quota rollback failed", zap.String("request_id", request.ID), zap.Error(err))
		}
	}

	if enrollment, err := s.enrollments.FindByID(ctx, request.EnrollmentID); err == nil {
		s.notifications.Emit(NotificationEvent{
			Type:         EventRescheduleCancelled,
			RequestID:    request.ID,
			EnrollmentID: enrollment.ID,
			StudentID:    enrollment.StudentID,
			TeacherID:    enrollment.TeacherID,
		})
	}
	return nil
}

func (s *RescheduleService) approveSingleMove(ctx context.Context, request *models.RescheduleRequest, enrollment *models.Enrollment) error {
	if request.SessionID == nil || request.NewDate == nil {
		return appErrors.Clone(appErrors.ErrValidation, "reschedule request is missing its target")
	}
	session, err := s.ownedSession(ctx, enrollment, *request.SessionID)
	if err != nil {
		return err
	}
	newSlot, err := models.ParseSlot(request.NewSlot)
	if err != nil {
		return err
	}
	newDate := *request.NewDate

	key := lock.ResourceKey(enrollment.TeacherID, newDate.Format(models.DateLayout), request.NewSlot)
	token := uuid.NewString()
	if err := s.acquire(ctx, key, token); err != nil {
		return err
	}
	defer s.release(ctx, key, token)

	declared, err := s.declarations.DeclaredFor(ctx, enrollment.TeacherID, newDate)
	if err != nil {
		return err
	}
	if !declared.Covers(newSlot) {
		return appErrors.Clone(appErrors.ErrSlotUnavailable, "teacher is not available for the new slot")
	}

	// The moved session itself never counts as a conflict, so a no-op
	// move to the same slot succeeds.
	if err := s.checkConflictsExcluding(ctx, enrollment, newDate, newSlot, session.ID); err != nil {
		return err
	}

	// Status flip and session move land together or not at all.
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
	if ok, err = s.requests.UpdateStatusWithTx(ctx, tx, request.ID, models.RescheduleStatusPending, models.RescheduleStatusApproved); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve reschedule request")
	}
	if !ok {
		err = appErrors.Clone(appErrors.ErrConflict, "reschedule request is no longer pending")
		return err
	}
	if err = s.sessions.RescheduleWithTx(ctx, tx, session.ID, newDate, newSlot.Start, newSlot.End); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move session")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit session move")
	}

	s.busy.ApplyDelta(ctx, enrollment.TeacherID, session.Date, nil, session.Slot().Ticks())
	s.busy.ApplyDelta(ctx, enrollment.TeacherID, newDate, newSlot.Ticks(), nil)
	return nil
}

func (s *RescheduleService) approvePatternReplace(ctx context.Context, request *models.RescheduleRequest, enrollment *models.Enrollment) error {
	from := s.today()
	forward, err := s.sessions.ListForwardByEnrollment(ctx, enrollment.ID, from)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load forward sessions")
	}
	if len(forward) == 0 {
		return appErrors.Clone(appErrors.ErrConflict, "no forward sessions to replace")
	}

	startNumber := forward[0].SessionNumber
	rangeEnd := forward[len(forward)-1].Date
	// Keep the original horizon but allow up to four extra weeks when
	// the new pattern is sparser than the old one.
	rangeEnd = rangeEnd.AddDate(0, 0, 28)

	dates := candidateDates(from, rangeEnd, request.NewWeekdays)
	if len(dates) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "new pattern yields no candidate dates")
	}
	token := uuid.NewString()
	locked, err := s.acquireAll(ctx, enrollment.TeacherID, dates, token)
	if err != nil {
		return err
	}
	defer func() {
		for _, key := range locked {
			s.release(ctx, key, token)
		}
	}()

	plan, err := s.generator.GeneratePlan(ctx, GeneratePlanInput{
		TeacherID:          enrollment.TeacherID,
		StudentID:          enrollment.StudentID,
		Weekdays:           request.NewWeekdays,
		Slots:              []string(request.NewSlots),
		RangeStart:         from,
		RangeEnd:           rangeEnd,
		TotalTimes:         len(forward),
		StartNumber:        startNumber,
		IgnoreEnrollmentID: enrollment.ID,
	})
	if err != nil {
		return err
	}

	replacement := make([]models.Session, 0, len(plan))
	for _, planned := range plan {
		replacement = append(replacement, models.Session{
			EnrollmentID:  enrollment.ID,
			TeacherID:     enrollment.TeacherID,
			StudentID:     enrollment.StudentID,
			Date:          planned.Date,
			StartTick:     planned.Slot.Start,
			EndTick:       planned.Slot.End,
			SessionNumber: planned.SessionNumber,
			Status:        models.SessionStatusScheduled,
		})
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var cancelled []models.Session
	if cancelled, err = s.sessions.CancelForwardByEnrollmentWithTx(ctx, tx, enrollment.ID, from); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel forward sessions")
	}
	if err = s.sessions.BulkCreateWithTx(ctx, tx, replacement); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create replacement sessions")
	}
	var ok bool
	if ok, err = s.requests.UpdateStatusWithTx(ctx, tx, request.ID, models.RescheduleStatusPending, models.RescheduleStatusApproved); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve reschedule request")
		return err
	}
	if !ok {
		err = appErrors.Clone(appErrors.ErrConflict, "reschedule request is no longer pending")
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit pattern replacement")
	}

	// The replaced dates change wholesale, a rebuild is cheaper than
	// computing deltas across two patterns.
	touched := make(map[string]time.Time)
	for _, session := range cancelled {
		touched[session.DateKey()] = session.Date
	}
	for _, session := range replacement {
		touched[session.DateKey()] = session.Date
	}
	for _, date := range touched {
		if err := s.busy.Invalidate(ctx, enrollment.TeacherID, date); err != nil {
			s.logger.Warn("busy index invalidation failed", zap.String("teacher_id", enrollment.TeacherID), zap.Error(err))
		}
	}
	return nil
}

func (s *RescheduleService) approveCancel(ctx context.Context, request *models.RescheduleRequest, enrollment *models.Enrollment) error {
	if request.SessionID != nil {
		session, err := s.ownedSession(ctx, enrollment, *request.SessionID)
		if err != nil {
			return err
		}
		if err := s.approveCancelSession(ctx, request, session); err != nil {
			return err
		}
		s.busy.ApplyDelta(ctx, enrollment.TeacherID, session.Date, nil, session.Slot().Ticks())
		return nil
	}

	// No session reference: the remainder of the enrollment goes.
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
	if ok, err = s.requests.UpdateStatusWithTx(ctx, tx, request.ID, models.RescheduleStatusPending, models.RescheduleStatusApproved); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve reschedule request")
	}
	if !ok {
		err = appErrors.Clone(appErrors.ErrConflict, "reschedule request is no longer pending")
		return err
	}
	var cancelled []models.Session
	if cancelled, err = s.sessions.CancelForwardByEnrollmentWithTx(ctx, tx, enrollment.ID, s.today()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel forward sessions")
	}
	if err = s.enrollments.UpdateStatusWithTx(ctx, tx, enrollment.ID, models.EnrollmentStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit cancellation")
	}

	for _, session := range cancelled {
		s.busy.ApplyDelta(ctx, enrollment.TeacherID, session.Date, nil, session.Slot().Ticks())
	}
	return nil
}

// approveCancelSession flips the request and cancels the single target
// session in one transaction.
func (s *RescheduleService) approveCancelSession(ctx context.Context, request *models.RescheduleRequest, session *models.Session) error {
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
	if ok, err = s.requests.UpdateStatusWithTx(ctx, tx, request.ID, models.RescheduleStatusPending, models.RescheduleStatusApproved); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve reschedule request")
	}
	if !ok {
		err = appErrors.Clone(appErrors.ErrConflict, "reschedule request is no longer pending")
		return err
	}
	if err = s.sessions.UpdateStatusWithTx(ctx, tx, session.ID, models.SessionStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit cancellation")
	}
	return nil
}

func (s *RescheduleService) checkConflictsExcluding(ctx context.Context, enrollment *models.Enrollment, date time.Time, slot models.SlotRange, excludeSessionID string) error {
	teacherConflicts, err := s.sessions.FindTeacherConflicts(ctx, enrollment.TeacherID, date, slot.Start, slot.End)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher conflicts")
	}
	if hasConflictExcluding(teacherConflicts, excludeSessionID) {
		return appErrors.Clone(appErrors.ErrSlotUnavailable, "new slot no longer available for this teacher")
	}
	studentConflicts, err := s.sessions.FindStudentConflicts(ctx, enrollment.StudentID, date, slot.Start, slot.End)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student conflicts")
	}
	if hasConflictExcluding(studentConflicts, excludeSessionID) {
		return appErrors.Clone(appErrors.ErrSlotUnavailable, "student already has a session in the new slot")
	}
	return nil
}

func (s *RescheduleService) activeEnrollment(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrEnrollmentInactive, fmt.Sprintf("enrollment is %s", enrollment.Status))
	}
	return enrollment, nil
}

func (s *RescheduleService) ownedSession(ctx context.Context, enrollment *models.Enrollment, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session id is required")
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.EnrollmentID != enrollment.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session does not belong to this enrollment")
	}
	if session.Status != models.SessionStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("session is %s, not scheduled", session.Status))
	}
	return session, nil
}

func (s *RescheduleService) acquire(ctx context.Context, key, token string) error {
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

func (s *RescheduleService) acquireAll(ctx context.Context, teacherID string, dates []time.Time, token string) ([]string, error) {
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

func (s *RescheduleService) release(ctx context.Context, key, token string) {
	if _, err := s.locker.Unlock(ctx, key, token); err != nil {
		s.logger.Warn("lock release failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *RescheduleService) recordOutcome(err error) {
	typed := appErrors.FromError(err)
	switch typed.Code {
	case appErrors.ErrSlotUnavailable.Code, appErrors.ErrInsufficientSlots.Code, appErrors.ErrConflict.Code:
		s.metrics.RecordBookingOutcome("reschedule", "conflict")
	case appErrors.ErrLockTimeout.Code:
		s.metrics.RecordBookingOutcome("reschedule", "lock_timeout")
	default:
		s.metrics.RecordBookingOutcome("reschedule", "error")
	}
}

func (s *RescheduleService) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func hasConflictExcluding(conflicts []models.Session, excludeSessionID string) bool {
	for _, session := range conflicts {
		if session.ID == excludeSessionID {
			continue
		}
		return true
	}
	return false
}
