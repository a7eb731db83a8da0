package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/tutorhive/tutorhive-api/internal/models"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
)

type suspensionRequestStore interface {
	FindByID(ctx context.Context, id string) (*models.SuspensionRequest, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SuspensionRequest, error)
	Create(ctx context.Context, request *models.SuspensionRequest) error
	UpdateStatus(ctx context.Context, id string, from, to models.SuspensionRequestStatus) (bool, error)
	UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, from, to models.SuspensionRequestStatus) (bool, error)
}

type suspensionSessionStore interface {
	CancelForwardByEnrollmentWithTx(ctx context.Context, tx *sqlx.Tx, enrollmentID string, from time.Time) ([]models.Session, error)
}

// CreateSuspensionInput asks to pause an enrollment.
type CreateSuspensionInput struct {
	EnrollmentID  string           `validate:"required"`
	ApplicantType models.ActorType `validate:"required"`
	ApplicantID   string           `validate:"required"`
	Reason        string           `validate:"required"`
}

// SuspensionService pauses enrollments. Approval suspends the
// enrollment and cancels its forward sessions; rejection rolls back the
// quota consumed at creation.
type SuspensionService struct {
	requests      suspensionRequestStore
	sessions      suspensionSessionStore
	enrollments   rescheduleEnrollmentStore
	busy          busyIndexUpdater
	quota         quotaConsumer
	tx            bookingTxProvider
	notifications notificationEmitter
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewSuspensionService wires the suspension workflow.
func NewSuspensionService(
	requests suspensionRequestStore,
	sessions suspensionSessionStore,
	enrollments rescheduleEnrollmentStore,
	busy busyIndexUpdater,
	quota quotaConsumer,
	tx bookingTxProvider,
	notifications notificationEmitter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *SuspensionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuspensionService{
		requests:      requests,
		sessions:      sessions,
		enrollments:   enrollments,
		busy:          busy,
		quota:         quota,
		tx:            tx,
		notifications: notifications,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateSuspensionRequest validates the request, consumes quota
// optimistically and persists it as pending.
func (s *SuspensionService) CreateSuspensionRequest(ctx context.Context, input CreateSuspensionInput) (*models.SuspensionRequest, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid suspension request payload")
	}
	enrollment, err := s.activeEnrollment(ctx, input.EnrollmentID)
	if err != nil {
		return nil, err
	}

	over, err := s.quota.ConsumeOnApply(ctx, input.ApplicantType, input.ApplicantID, enrollment.ID)
	if err != nil {
		return nil, err
	}
	if over {
		s.logger.Info("suspension request over monthly quota",
			zap.String("enrollment_id", enrollment.ID),
			zap.String("applicant_id", input.ApplicantID),
		)
	}

	request := &models.SuspensionRequest{
		EnrollmentID:  enrollment.ID,
		ApplicantType: input.ApplicantType,
		ApplicantID:   input.ApplicantID,
		Reason:        input.Reason,
		Status:        models.SuspensionStatusPending,
		QuotaConsumed: true,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create suspension request")
	}
	return request, nil
}

// GetSuspensionRequest loads one request.
func (s *SuspensionService) GetSuspensionRequest(ctx context.Context, id string) (*models.SuspensionRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "suspension request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load suspension request")
	}
	return request, nil
}

// ListByEnrollment returns the suspension history for an enrollment.
func (s *SuspensionService) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SuspensionRequest, error) {
	return s.requests.ListByEnrollment(ctx, enrollmentID)
}

// ApproveSuspensionRequest suspends the enrollment and cancels its
// forward sessions in one transaction.
func (s *SuspensionService) ApproveSuspensionRequest(ctx context.Context, requestID string) error {
	request, err := s.GetSuspensionRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status != models.SuspensionStatusPending {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("suspension request is %s, not pending", request.Status))
	}
	enrollment, err := s.activeEnrollment(ctx, request.EnrollmentID)
	if err != nil {
		s.metrics.RecordBookingOutcome("suspension", "conflict")
		return err
	}

	// Request flip, session halt and enrollment suspension land
	// together or not at all.
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
	if ok, err = s.requests.UpdateStatusWithTx(ctx, tx, requestID, models.SuspensionStatusPending, models.SuspensionStatusApproved); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve suspension request")
	}
	if !ok {
		s.metrics.RecordBookingOutcome("suspension", "conflict")
		err = appErrors.Clone(appErrors.ErrConflict, "suspension request is no longer pending")
		return err
	}
	var cancelled []models.Session
	if cancelled, err = s.sessions.CancelForwardByEnrollmentWithTx(ctx, tx, enrollment.ID, s.today()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to halt forward sessions")
	}
	if err = s.enrollments.UpdateStatusWithTx(ctx, tx, enrollment.ID, models.EnrollmentStatusSuspended); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to suspend enrollment")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit suspension")
	}

	for _, session := range cancelled {
		s.busy.ApplyDelta(ctx, enrollment.TeacherID, session.Date, nil, session.Slot().Ticks())
	}

	s.metrics.RecordBookingOutcome("suspension", "approved")
	s.notifications.Emit(NotificationEvent{
		Type:         EventSuspensionApproved,
		RequestID:    request.ID,
		EnrollmentID: enrollment.ID,
		StudentID:    enrollment.StudentID,
		TeacherID:    enrollment.TeacherID,
	})
	return nil
}

// RejectSuspensionRequest rejects a pending request and rolls back the
// quota consumed at creation.
func (s *SuspensionService) RejectSuspensionRequest(ctx context.Context, requestID string) error {
	request, err := s.GetSuspensionRequest(ctx, requestID)
	if err != nil {
		return err
	}
	ok, err := s.requests.UpdateStatus(ctx, requestID, models.SuspensionStatusPending, models.SuspensionStatusRejected)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject suspension request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "suspension request is no longer pending")
	}

	if request.QuotaConsumed {
		if err := s.quota.RollbackOnReject(ctx, request.ApplicantType, request.ApplicantID, request.EnrollmentID); err != nil {
			s.logger.Error("quota rollback failed", zap.String("request_id", request.ID), zap.Error(err))
		}
	}

	if enrollment, err := s.enrollments.FindByID(ctx, request.EnrollmentID); err == nil {
		s.notifications.Emit(NotificationEvent{
			Type:         EventSuspensionRejected,
			RequestID:    request.ID,
			EnrollmentID: enrollment.ID,
			StudentID:    enrollment.StudentID,
			TeacherID:    enrollment.TeacherID,
		})
	}
	return nil
}

// ResumeEnrollment returns a suspended enrollment to active. Sessions
// cancelled by the suspension are not restored, the schedule restarts
// from a fresh change request.
func (s *SuspensionService) ResumeEnrollment(ctx context.Context, enrollmentID string) error {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusSuspended {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("enrollment is %s, not suspended", enrollment.Status))
	}
	if err := s.enrollments.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusActive); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resume enrollment")
	}
	return nil
}

func (s *SuspensionService) activeEnrollment(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
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

func (s *SuspensionService) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
