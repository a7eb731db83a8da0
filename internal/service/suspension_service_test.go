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

type stubSuspensionStore struct {
	items map[string]*models.SuspensionRequest
}

func newStubSuspensionStore() *stubSuspensionStore {
	return &stubSuspensionStore{items: make(map[string]*models.SuspensionRequest)}
}

func (s *stubSuspensionStore) FindByID(_ context.Context, id string) (*models.SuspensionRequest, error) {
	request, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *request
	return &copied, nil
}

func (s *stubSuspensionStore) ListByEnrollment(_ context.Context, enrollmentID string) ([]models.SuspensionRequest, error) {
	var out []models.SuspensionRequest
	for _, request := range s.items {
		if request.EnrollmentID == enrollmentID {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (s *stubSuspensionStore) Create(_ context.Context, request *models.SuspensionRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	copied := *request
	s.items[request.ID] = &copied
	return nil
}

func (s *stubSuspensionStore) UpdateStatus(_ context.Context, id string, from, to models.SuspensionRequestStatus) (bool, error) {
	request, ok := s.items[id]
	if !ok || request.Status != from {
		return false, nil
	}
	request.Status = to
	return true, nil
}

func (s *stubSuspensionStore) UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, from, to models.SuspensionRequestStatus) (bool, error) {
	if tx == nil {
		return false, sql.ErrTxDone
	}
	return s.UpdateStatus(ctx, id, from, to)
}

type suspensionFixture struct {
	svc         *SuspensionService
	requests    *stubSuspensionStore
	sessions    *rescheduleSessionStub
	enrollments *stubEnrollmentStore
	busy        *stubBusyUpdater
	quota       *stubQuotaConsumer
	notifier    *stubNotifier
	mock        sqlmock.Sqlmock
	enrollment  *models.Enrollment
}

func newSuspensionFixture(t *testing.T) *suspensionFixture {
	t.Helper()
	requests := newStubSuspensionStore()
	sessions := &rescheduleSessionStub{}
	enrollments := newStubEnrollmentStore()
	busy := &stubBusyUpdater{}
	quota := &stubQuotaConsumer{}
	notifier := &stubNotifier{}
	tx, mock := newBookingTxProvider(t)

	enrollment := &models.Enrollment{
		ID:        "enr-1",
		TeacherID: "teacher-1",
		StudentID: "student-a",
		Status:    models.EnrollmentStatusActive,
	}
	enrollments.items[enrollment.ID] = enrollment

	sessions.sessions = append(sessions.sessions, models.Session{
		ID:           "sess-1",
		EnrollmentID: enrollment.ID,
		TeacherID:    enrollment.TeacherID,
		StudentID:    enrollment.StudentID,
		Date:         mondayDate(t),
		StartTick:    28,
		EndTick:      32,
		Status:       models.SessionStatusScheduled,
	})

	svc := NewSuspensionService(requests, sessions, enrollments, busy, quota, tx, notifier, nil, nil, nil)
	svc.now = func() time.Time { return rescheduleToday(t) }

	return &suspensionFixture{
		svc:         svc,
		requests:    requests,
		sessions:    sessions,
		enrollments: enrollments,
		busy:        busy,
		quota:       quota,
		notifier:    notifier,
		mock:        mock,
		enrollment:  enrollment,
	}
}

func pendingSuspension(t *testing.T, fx *suspensionFixture) *models.SuspensionRequest {
	t.Helper()
	request, err := fx.svc.CreateSuspensionRequest(context.Background(), CreateSuspensionInput{
		EnrollmentID:  fx.enrollment.ID,
		ApplicantType: models.ActorStudent,
		ApplicantID:   fx.enrollment.StudentID,
		Reason:        "travelling",
	})
	require.NoError(t, err)
	return request
}

func TestCreateSuspensionRequest(t *testing.T) {
	fx := newSuspensionFixture(t)

	request := pendingSuspension(t, fx)
	assert.Equal(t, models.SuspensionStatusPending, request.Status)
	assert.True(t, request.QuotaConsumed)
	assert.Equal(t, 1, fx.quota.consumed)
}

func TestCreateSuspensionRequestInactiveEnrollment(t *testing.T) {
	fx := newSuspensionFixture(t)
	fx.enrollment.Status = models.EnrollmentStatusCancelled

	_, err := fx.svc.CreateSuspensionRequest(context.Background(), CreateSuspensionInput{
		EnrollmentID:  fx.enrollment.ID,
		ApplicantType: models.ActorStudent,
		ApplicantID:   fx.enrollment.StudentID,
		Reason:        "travelling",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEnrollmentInactive.Code, appErrors.FromError(err).Code)
}

func TestApproveSuspensionHaltsForwardSessions(t *testing.T) {
	fx := newSuspensionFixture(t)
	request := pendingSuspension(t, fx)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	require.NoError(t, fx.svc.ApproveSuspensionRequest(context.Background(), request.ID))

	stored, err := fx.enrollments.FindByID(context.Background(), fx.enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusSuspended, stored.Status)
	assert.Equal(t, models.SessionStatusCancelled, fx.sessions.sessions[0].Status)

	require.Len(t, fx.busy.deltas, 1)
	assert.Equal(t, []int{28, 29, 30, 31}, fx.busy.deltas[0].remove)

	require.Len(t, fx.notifier.events, 1)
	assert.Equal(t, EventSuspensionApproved, fx.notifier.events[0].Type)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestApproveSuspensionTwiceFails(t *testing.T) {
	fx := newSuspensionFixture(t)
	request := pendingSuspension(t, fx)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	require.NoError(t, fx.svc.ApproveSuspensionRequest(context.Background(), request.ID))

	err := fx.svc.ApproveSuspensionRequest(context.Background(), request.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRejectSuspensionRollsBackQuota(t *testing.T) {
	fx := newSuspensionFixture(t)
	request := pendingSuspension(t, fx)

	require.NoError(t, fx.svc.RejectSuspensionRequest(context.Background(), request.ID))

	stored, err := fx.svc.GetSuspensionRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SuspensionStatusRejected, stored.Status)
	assert.Equal(t, 1, fx.quota.rollbacks)
	assert.Equal(t, models.EnrollmentStatusActive, fx.enrollment.Status, "enrollment untouched on reject")
}

func TestResumeEnrollment(t *testing.T) {
	fx := newSuspensionFixture(t)

	err := fx.svc.ResumeEnrollment(context.Background(), fx.enrollment.ID)
	require.Error(t, err, "active enrollment cannot be resumed")

	fx.enrollment.Status = models.EnrollmentStatusSuspended
	require.NoError(t, fx.svc.ResumeEnrollment(context.Background(), fx.enrollment.ID))

	stored, findErr := fx.enrollments.FindByID(context.Background(), fx.enrollment.ID)
	require.NoError(t, findErr)
	assert.Equal(t, models.EnrollmentStatusActive, stored.Status)
}
