package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tutorhive/tutorhive-api/internal/models"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
)

type quotaCounterRepository interface {
	Increment(ctx context.Context, actorType models.ActorType, actorID, enrollmentID, monthKey string) (int, error)
	Decrement(ctx context.Context, actorType models.ActorType, actorID, enrollmentID, monthKey string) (int, error)
	Used(ctx context.Context, actorType models.ActorType, actorID, enrollmentID, monthKey string) (int, error)
}

// QuotaConfig carries the monthly allowances. Allowances are checked
// against, never stored in, the counter rows.
type QuotaConfig struct {
	StudentMonthlyAllowance int
	TeacherMonthlyAllowance int
}

// QuotaService counts monthly adjustment actions per actor and
// enrollment. It only counts; the calling workflow decides what an
// over-quota result means.
type QuotaService struct {
	counters quotaCounterRepository
	cfg      QuotaConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewQuotaService wires the quota counter.
func NewQuotaService(counters quotaCounterRepository, cfg QuotaConfig, logger *zap.Logger) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StudentMonthlyAllowance <= 0 {
		cfg.StudentMonthlyAllowance = 3
	}
	if cfg.TeacherMonthlyAllowance <= 0 {
		cfg.TeacherMonthlyAllowance = 3
	}
	return &QuotaService{counters: counters, cfg: cfg, logger: logger, now: time.Now}
}

// ConsumeOnApply increments the current-month counter and reports
// whether the post-increment value exceeds the allowance.
func (s *QuotaService) ConsumeOnApply(ctx context.Context, actorType models.ActorType, actorID, enrollmentID string) (bool, error) {
	used, err := s.counters.Increment(ctx, actorType, actorID, enrollmentID, s.monthKey())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume adjustment quota")
	}
	return used > s.allowanceFor(actorType), nil
}

// RollbackOnReject restores one consumed unit, floored at zero.
func (s *QuotaService) RollbackOnReject(ctx context.Context, actorType models.ActorType, actorID, enrollmentID string) error {
	if _, err := s.counters.Decrement(ctx, actorType, actorID, enrollmentID, s.monthKey()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to roll back adjustment quota")
	}
	return nil
}

// IsOverQuota reads the current counter without mutating it.
func (s *QuotaService) IsOverQuota(ctx context.Context, actorType models.ActorType, actorID, enrollmentID string) (bool, error) {
	used, err := s.counters.Used(ctx, actorType, actorID, enrollmentID, s.monthKey())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read adjustment quota")
	}
	return used > s.allowanceFor(actorType), nil
}

// Usage returns the current used count and the applicable allowance.
func (s *QuotaService) Usage(ctx context.Context, actorType models.ActorType, actorID, enrollmentID string) (int, int, error) {
	used, err := s.counters.Used(ctx, actorType, actorID, enrollmentID, s.monthKey())
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read adjustment quota")
	}
	return used, s.allowanceFor(actorType), nil
}

func (s *QuotaService) allowanceFor(actorType models.ActorType) int {
	if actorType == models.ActorTeacher {
		return s.cfg.TeacherMonthlyAllowance
	}
	return s.cfg.StudentMonthlyAllowance
}

// A new month simply starts a fresh counter row; no reset job exists.
func (s *QuotaService) monthKey() string {
	return models.MonthKeyAt(s.now())
}
