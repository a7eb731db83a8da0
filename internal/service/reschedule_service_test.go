package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhive/tutorhive-api/internal/models"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
)

type stubRescheduleStore struct {
	items map[string]*models.RescheduleRequest
}

func newStubRescheduleStore() *stubRescheduleStore {
	return &stubRescheduleStore{items: make(map[string]*models.RescheduleRequest)}
}

func (s *stubRescheduleStore) FindByID(_ context.Context, id string) (*models.RescheduleRequest, error) {
	request, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *request
	return &copied, nil
}

func (s *stubRescheduleStore) ListByEnrollment(_ context.Context, enrollmentID string) ([]models.RescheduleRequest, error) {
	var out []models.RescheduleRequest
	for _, request := range s.items {
		if request.EnrollmentID == enrollmentID {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (s *stubRescheduleStore) Create(_ context.Context, request *models.RescheduleRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	copied := *request
	s.items[request.ID] = &copied
	return nil
}

func (s *stubRescheduleStore) UpdateStatus(_ context.Context, id string, from, to models.RescheduleRequestStatus) (bool, error) {
	request, ok := s.items[id]
	if !ok || request.Status != from {
		return false, nil
	}
	request.Status = to
	return true, nil
}

func (s *stubRescheduleStore) UpdateStatusWithTx(ctx context.Context, _ *sqlx.Tx, id string, from, to models.RescheduleRequestStatus) (bool, error) {
	return s.UpdateStatus(ctx, id, from, to)
}

// rescheduleSessionStub extends the booking session stub with the
// lookup and mutation methods the change workflow needs.
type rescheduleSessionStub struct {
	stubSessionStore
}

func (s *rescheduleSessionStub) FindByID(_ context.Context, id string) (*models.Session, error) {
	for _, session := range s.sessions {
		if session.ID == id {
			copied := session
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *rescheduleSessionStub) RescheduleWithTx(_ context.Context, tx *sqlx.Tx, id string, date time.Time, startTick, endTick int) error {
	if tx == nil {
		return sql.ErrTxDone
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			s.sessions[i].Date = date
			s.sessions[i].StartTick = startTick
			s.sessions[i].EndTick = endTick
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *rescheduleSessionStub) UpdateStatusWithTx(_ context.Context, tx *sqlx.Tx, id string, status models.SessionStatus) error {
	if tx == nil {
		return sql.ErrTxDone
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			s.sessions[i].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *rescheduleSessionStub) ListForwardByEnrollment(_ context.Context, enrollmentID string, from time.Time) ([]models.Session, error) {
	var out []models.Session
	for _, session := range s.sessions {
		if session.EnrollmentID == enrollmentID && session.Status == models.SessionStatusScheduled && !session.Date.Before(from) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *rescheduleSessionStub) CancelForwardByEnrollmentWithTx(ctx context.Context, _ *sqlx.Tx, enrollmentID string, from time.Time) ([]models.Session, error) {
	return s.CancelForwardByEnrollment(ctx, enrollmentID, from)
}

type stubQuotaConsumer struct {
	consumed  int
	rollbacks int
	over      bool
}

func (s *stubQuotaConsumer) ConsumeOnApply(context.Context, models.ActorType, string, string) (bool, error) {
	s.consumed++
	return s.over, nil
}

func (s *stubQuotaConsumer) RollbackOnReject(context.Context, models.ActorType, string, string) error {
	s.rollbacks++
	return nil
}

type rescheduleFixture struct {
	svc         *RescheduleService
	requests    *stubRescheduleStore
	sessions    *rescheduleSessionStub
	enrollments *stubEnrollmentStore
	busy        *stubBusyUpdater
	quota       *stubQuotaConsumer
	locker      *stubLocker
	notifier    *stubNotifier
	mock        sqlmock.Sqlmock
	enrollment  *models.Enrollment
	session     models.Session
}

func rescheduleToday(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
}

func newRescheduleFixture(t *testing.T, declared models.DeclaredAvailability) *rescheduleFixture {
	t.Helper()
	requests := newStubRescheduleStore()
	sessions := &rescheduleSessionStub{}
	enrollments := newStubEnrollmentStore()
	busy := &stubBusyUpdater{}
	quota := &stubQuotaConsumer{}
	locker := newStubLocker()
	notifier := &stubNotifier{}
	tx, mock := newBookingTxProvider(t)
	declarations := &fixedDeclarations{declared: declared}
	generator := NewScheduleGeneratorService(sessions, declarations, nil)

	enrollment := &models.Enrollment{
		ID:        "enr-1",
		TeacherID: "teacher-1",
		StudentID: "student-a",
		Status:    models.EnrollmentStatusActive,
	}
	enrollments.items[enrollment.ID] = enrollment

	session := models.Session{
		ID:            "sess-1",
		EnrollmentID:  enrollment.ID,
		TeacherID:     enrollment.TeacherID,
		StudentID:     enrollment.StudentID,
		Date:          mondayDate(t),
		StartTick:     28,
		EndTick:       32,
		SessionNumber: 1,
		Status:        models.SessionStatusScheduled,
	}
	sessions.sessions = append(sessions.sessions, session)

	svc := NewRescheduleService(
		requests, sessions, enrollments, generator,
		declarations,
		busy, quota, locker, tx, notifier, nil, nil, nil,
		BookingWorkflowConfig{LockTTL: time.Second, LockRetryInterval: time.Millisecond},
	)
	svc.now = func() time.Time { return rescheduleToday(t) }

	return &rescheduleFixture{
		svc:         svc,
		requests:    requests,
		sessions:    sessions,
		enrollments: enrollments,
		busy:        busy,
		quota:       quota,
		locker:      locker,
		notifier:    notifier,
		mock:        mock,
		enrollment:  enrollment,
		session:     session,
	}
}

func pendingSingleMove(t *testing.T, fx *rescheduleFixture, newDate time.Time, newSlot string) *models.RescheduleRequest {
	t.Helper()
	request, err := fx.svc.CreateRescheduleRequest(context.Background(), CreateRescheduleInput{
		EnrollmentID:  fx.enrollment.ID,
		SessionID:     fx.session.ID,
		Type:          models.RescheduleTypeSingle,
		ApplicantType: models.ActorStudent,
		ApplicantID:   fx.enrollment.StudentID,
		NewDate:       &newDate,
		NewSlot:       newSlot,
	})
	require.NoError(t, err)
	return request
}

// --- Create ---

func TestCreateRescheduleRequestConsumesQuota(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "14:00-16:00"))

	request := pendingSingleMove(t, fx, mondayDate(t).AddDate(0, 0, 1), "14:00-16:00")
	assert.Equal(t, models.RescheduleStatusPending, request.Status)
	assert.True(t, request.QuotaConsumed)
	assert.Equal(t, 1, fx.quota.consumed)
}

func TestCreateRescheduleRequestInactiveEnrollment(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "14:00-16:00"))
	fx.enrollment.Status = models.EnrollmentStatusSuspended

	_, err := fx.svc.CreateRescheduleRequest(context.Background(), CreateRescheduleInput{
		EnrollmentID:  fx.enrollment.ID,
		SessionID:     fx.session.ID,
		Type:          models.RescheduleTypeSingle,
		ApplicantType: models.ActorStudent,
		ApplicantID:   fx.enrollment.StudentID,
		NewDate:       ptrTime(mondayDate(t).AddDate(0, 0, 1)),
		NewSlot:       "14:00-16:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEnrollmentInactive.Code, appErrors.FromError(err).Code)
	assert.Zero(t, fx.quota.consumed)
}

func TestCreateRescheduleRequestOverQuotaStillCreated(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "14:00-16:00"))
	fx.quota.over = true

	request := pendingSingleMove(t, fx, mondayDate(t).AddDate(0, 0, 1), "14:00-16:00")
	assert.Equal(t, models.RescheduleStatusPending, request.Status)
}

// --- Approve single move ---

func TestApproveSingleMove(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "14:00-16:00", "10:00-12:00"))
	newDate := mondayDate(t).AddDate(0, 0, 1)
	request := pendingSingleMove(t, fx, newDate, "10:00-12:00")

	// The status flip and the session move share one transaction.
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	require.NoError(t, fx.svc.ApproveRescheduleRequest(context.Background(), request.ID))

	stored, err := fx.svc.GetRescheduleRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleStatusApproved, stored.Status)

	moved, err := fx.sessions.FindByID(context.Background(), fx.session.ID)
	require.NoError(t, err)
	assert.True(t, moved.Date.Equal(newDate))
	assert.Equal(t, 20, moved.StartTick)
	assert.Equal(t, 24, moved.EndTick)

	require.Len(t, fx.busy.deltas, 2)
	assert.Equal(t, []int{28, 29, 30, 31}, fx.busy.deltas[0].remove)
	assert.Equal(t, []int{20, 21, 22, 23}, fx.busy.deltas[1].add)

	assert.Empty(t, fx.locker.held)
	require.Len(t, fx.notifier.events, 1)
	assert.Equal(t, EventRescheduleApproved, fx.notifier.events[0].Type)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestApproveSingleMoveToSameSlotSucceeds(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "14:00-16:00"))
	request := pendingSingleMove(t, fx, mondayDate(t), "14:00-16:00")

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	// The moved session occupies the target itself and must not count
	// as a conflict against its own move.
	require.NoError(t, fx.svc.ApproveRescheduleRequest(context.Background(), request.ID))

	moved, err := fx.sessions.FindByID(context.Background(), fx.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 28, moved.StartTick)
}

func TestApproveSingleMoveConflictKeepsPending(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "14:00-16:00", "10:00-12:00"))
	newDate := mondayDate(t).AddDate(0, 0, 1)
	fx.sessions.sessions = append(fx.sessions.sessions, models.Session{
		ID:           "sess-other",
		EnrollmentID: "enr-other",
		TeacherID:    fx.enrollment.TeacherID,
		StudentID:    "student-z",
		Date:         newDate,
		StartTick:    20,
		EndTick:      24,
		Status:       models.SessionStatusScheduled,
	})
	request := pendingSingleMove(t, fx, newDate, "10:00-12:00")

	err := fx.svc.ApproveRescheduleRequest(context.Background(), request.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, appErrors.FromError(err).Code)

	stored, err := fx.svc.GetRescheduleRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleStatusPending, stored.Status)
	assert.Empty(t, fx.locker.held)
}

// --- Approve recurring replacement ---

func TestApprovePatternReplacement(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "18:00-20:00"))

	// Replace the seeded Monday afternoon session with a Monday evening
	// series, then move the whole series to Tuesdays.
	fx.sessions.sessions = nil
	for i, number := range []int{5, 6, 7} {
		fx.sessions.sessions = append(fx.sessions.sessions, models.Session{
			ID:            uuid.NewString(),
			EnrollmentID:  fx.enrollment.ID,
			TeacherID:     fx.enrollment.TeacherID,
			StudentID:     fx.enrollment.StudentID,
			Date:          mondayDate(t).AddDate(0, 0, 7*i),
			StartTick:     36,
			EndTick:       40,
			SessionNumber: number,
			Status:        models.SessionStatusScheduled,
		})
	}

	request, err := fx.svc.CreateRescheduleRequest(context.Background(), CreateRescheduleInput{
		EnrollmentID:  fx.enrollment.ID,
		Type:          models.RescheduleTypeRecurring,
		ApplicantType: models.ActorTeacher,
		ApplicantID:   fx.enrollment.TeacherID,
		NewWeekdays:   []int{2},
		NewSlots:      []string{"18:00-20:00"},
	})
	require.NoError(t, err)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	require.NoError(t, fx.svc.ApproveRescheduleRequest(context.Background(), request.ID))

	var cancelled, scheduled []models.Session
	for _, session := range fx.sessions.sessions {
		switch session.Status {
		case models.SessionStatusCancelled:
			cancelled = append(cancelled, session)
		case models.SessionStatusScheduled:
			scheduled = append(scheduled, session)
		}
	}
	require.Len(t, cancelled, 3)
	require.Len(t, scheduled, 3)

	// Numbering continues from the replaced series.
	assert.Equal(t, 5, scheduled[0].SessionNumber)
	assert.Equal(t, 7, scheduled[2].SessionNumber)
	for _, session := range scheduled {
		assert.Equal(t, time.Tuesday, session.Date.Weekday())
		assert.Equal(t, 36, session.StartTick)
	}

	assert.NotEmpty(t, fx.busy.invalidated)
	assert.Empty(t, fx.locker.held)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// --- Approve cancel ---

func TestApproveCancelSingleSession(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "14:00-16:00"))
	request, err := fx.svc.CreateRescheduleRequest(context.Background(), CreateRescheduleInput{
		EnrollmentID:  fx.enrollment.ID,
		SessionID:     fx.session.ID,
		Type:          models.RescheduleTypeCancel,
		ApplicantType: models.ActorStudent,
		ApplicantID:   fx.enrollment.StudentID,
	})
	require.NoError(t, err)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	require.NoError(t, fx.svc.ApproveRescheduleRequest(context.Background(), request.ID))

	stored, err := fx.sessions.FindByID(context.Background(), fx.session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCancelled, stored.Status)

	require.Len(t, fx.busy.deltas, 1)
	assert.Equal(t, []int{28, 29, 30, 31}, fx.busy.deltas[0].remove)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestApproveCancelRemainingEnrollment(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "14:00-16:00"))
	request, err := fx.svc.CreateRescheduleRequest(context.Background(), CreateRescheduleInput{
		EnrollmentID:  fx.enrollment.ID,
		Type:          models.RescheduleTypeCancel,
		ApplicantType: models.ActorStudent,
		ApplicantID:   fx.enrollment.StudentID,
	})
	require.NoError(t, err)

	// Request flip, forward cancel and enrollment status share one
	// transaction.
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	require.NoError(t, fx.svc.ApproveRescheduleRequest(context.Background(), request.ID))

	stored, err := fx.svc.GetRescheduleRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleStatusApproved, stored.Status)

	enrollment, err := fx.enrollments.FindByID(context.Background(), fx.enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCancelled, enrollment.Status)
	assert.Equal(t, models.SessionStatusCancelled, fx.sessions.sessions[0].Status)

	require.Len(t, fx.busy.deltas, 1)
	assert.Equal(t, []int{28, 29, 30, 31}, fx.busy.deltas[0].remove)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// --- Cancel ---

func TestCancelRescheduleRequestRefundsQuota(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "14:00-16:00"))
	request := pendingSingleMove(t, fx, mondayDate(t).AddDate(0, 0, 1), "14:00-16:00")

	require.NoError(t, fx.svc.CancelRescheduleRequest(context.Background(), request.ID, fx.enrollment.StudentID))

	stored, err := fx.svc.GetRescheduleRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleStatusCancelled, stored.Status)
	assert.Equal(t, 1, fx.quota.rollbacks)

	require.Len(t, fx.notifier.events, 1)
	assert.Equal(t, EventRescheduleCancelled, fx.notifier.events[0].Type)

	// The withdrawn request is terminal.
	err = fx.svc.ApproveRescheduleRequest(context.Background(), request.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCancelRescheduleRequestOnlyApplicant(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "14:00-16:00"))
	request := pendingSingleMove(t, fx, mondayDate(t).AddDate(0, 0, 1), "14:00-16:00")

	err := fx.svc.CancelRescheduleRequest(context.Background(), request.ID, "intruder")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Zero(t, fx.quota.rollbacks)

	stored, err := fx.svc.GetRescheduleRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleStatusPending, stored.Status)
}

// --- Reject ---

func TestRejectRescheduleRollsBackQuota(t *testing.T) {
	fx := newRescheduleFixture(t, declaredSlots(t, "14:00-16:00"))
	request := pendingSingleMove(t, fx, mondayDate(t).AddDate(0, 0, 1), "14:00-16:00")

	require.NoError(t, fx.svc.RejectRescheduleRequest(context.Background(), request.ID))

	stored, err := fx.svc.GetRescheduleRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleStatusRejected, stored.Status)
	assert.Equal(t, 1, fx.quota.rollbacks)

	// A second reject hits the status guard.
	err = fx.svc.RejectRescheduleRequest(context.Background(), request.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, fx.quota.rollbacks)
}
