package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhive/tutorhive-api/internal/models"
)

type stubQuotaRepo struct {
	used map[string]int
}

func newStubQuotaRepo() *stubQuotaRepo {
	return &stubQuotaRepo{used: make(map[string]int)}
}

func quotaRowKey(actorType models.ActorType, actorID, enrollmentID, monthKey string) string {
	return fmt.Sprintf("%s|%s|%s|%s", actorType, actorID, enrollmentID, monthKey)
}

func (s *stubQuotaRepo) Increment(_ context.Context, actorType models.ActorType, actorID, enrollmentID, monthKey string) (int, error) {
	key := quotaRowKey(actorType, actorID, enrollmentID, monthKey)
	s.used[key]++
	return s.used[key], nil
}

func (s *stubQuotaRepo) Decrement(_ context.Context, actorType models.ActorType, actorID, enrollmentID, monthKey string) (int, error) {
	key := quotaRowKey(actorType, actorID, enrollmentID, monthKey)
	if s.used[key] > 0 {
		s.used[key]--
	}
	return s.used[key], nil
}

func (s *stubQuotaRepo) Used(_ context.Context, actorType models.ActorType, actorID, enrollmentID, monthKey string) (int, error) {
	return s.used[quotaRowKey(actorType, actorID, enrollmentID, monthKey)], nil
}

func quotaFixture(repo *stubQuotaRepo) *QuotaService {
	svc := NewQuotaService(repo, QuotaConfig{StudentMonthlyAllowance: 2, TeacherMonthlyAllowance: 4}, nil)
	svc.now = func() time.Time {
		return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestQuotaConsumeWithinAllowance(t *testing.T) {
	repo := newStubQuotaRepo()
	svc := quotaFixture(repo)

	over, err := svc.ConsumeOnApply(context.Background(), models.ActorStudent, "student-1", "enr-1")
	require.NoError(t, err)
	assert.False(t, over)

	over, err = svc.ConsumeOnApply(context.Background(), models.ActorStudent, "student-1", "enr-1")
	require.NoError(t, err)
	assert.False(t, over)

	// Third consume crosses the student allowance of 2.
	over, err = svc.ConsumeOnApply(context.Background(), models.ActorStudent, "student-1", "enr-1")
	require.NoError(t, err)
	assert.True(t, over)
}

func TestQuotaConsumeThenRollbackRestoresPrior(t *testing.T) {
	repo := newStubQuotaRepo()
	svc := quotaFixture(repo)

	_, err := svc.ConsumeOnApply(context.Background(), models.ActorStudent, "student-1", "enr-1")
	require.NoError(t, err)
	used, _, err := svc.Usage(context.Background(), models.ActorStudent, "student-1", "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 1, used)

	require.NoError(t, svc.RollbackOnReject(context.Background(), models.ActorStudent, "student-1", "enr-1"))
	used, allowance, err := svc.Usage(context.Background(), models.ActorStudent, "student-1", "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 0, used)
	assert.Equal(t, 2, allowance)
}

func TestQuotaRollbackFloorsAtZero(t *testing.T) {
	repo := newStubQuotaRepo()
	svc := quotaFixture(repo)

	require.NoError(t, svc.RollbackOnReject(context.Background(), models.ActorStudent, "student-1", "enr-1"))
	used, _, err := svc.Usage(context.Background(), models.ActorStudent, "student-1", "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestQuotaTeacherAllowanceApplies(t *testing.T) {
	repo := newStubQuotaRepo()
	svc := quotaFixture(repo)

	for i := 0; i < 4; i++ {
		over, err := svc.ConsumeOnApply(context.Background(), models.ActorTeacher, "teacher-1", "enr-1")
		require.NoError(t, err)
		assert.False(t, over, "consume %d", i+1)
	}
	over, err := svc.ConsumeOnApply(context.Background(), models.ActorTeacher, "teacher-1", "enr-1")
	require.NoError(t, err)
	assert.True(t, over)
}

func TestQuotaMonthBoundaryStartsFreshRow(t *testing.T) {
	repo := newStubQuotaRepo()
	svc := quotaFixture(repo)

	_, err := svc.ConsumeOnApply(context.Background(), models.ActorStudent, "student-1", "enr-1")
	require.NoError(t, err)

	svc.now = func() time.Time {
		return time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	}
	used, _, err := svc.Usage(context.Background(), models.ActorStudent, "student-1", "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestQuotaIsOverQuotaDoesNotMutate(t *testing.T) {
	repo := newStubQuotaRepo()
	svc := quotaFixture(repo)

	over, err := svc.IsOverQuota(context.Background(), models.ActorStudent, "student-1", "enr-1")
	require.NoError(t, err)
	assert.False(t, over)
	used, _, err := svc.Usage(context.Background(), models.ActorStudent, "student-1", "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}
