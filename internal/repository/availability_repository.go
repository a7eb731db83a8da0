package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorhive/tutorhive-api/internal/models"
)

// AvailabilityRepository persists weekly availability patterns and
// per-day overrides.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListPatterns returns all weekly pattern rows for a teacher.
func (r *AvailabilityRepository) ListPatterns(ctx context.Context, teacherID string) ([]models.TeacherAvailabilityPattern, error) {
	const query = `SELECT id, teacher_id, weekday, slots, created_at, updated_at FROM teacher_availability_patterns WHERE teacher_id = $1 ORDER BY weekday ASC`
	var patterns []models.TeacherAvailabilityPattern
	if err := r.db.SelectContext(ctx, &patterns, query, teacherID); err != nil {
		return nil, fmt.Errorf("list availability patterns: %w", err)
	}
	return patterns, nil
}

// FindPattern loads the pattern row for one teacher/weekday.
func (r *AvailabilityRepository) FindPattern(ctx context.Context, teacherID string, weekday int) (*models.TeacherAvailabilityPattern, error) {
	const query = `SELECT id, teacher_id, weekday, slots, created_at, updated_at FROM teacher_availability_patterns WHERE teacher_id = $1 AND weekday = $2`
	var pattern models.TeacherAvailabilityPattern
	if err := r.db.GetContext(ctx, &pattern, query, teacherID, weekday); err != nil {
		return nil, err
	}
	return &pattern, nil
}

// UpsertPattern replaces the slot list for one teacher/weekday.
func (r *AvailabilityRepository) UpsertPattern(ctx context.Context, pattern *models.TeacherAvailabilityPattern) error {
	if pattern.ID == "" {
		pattern.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = now
	}
	pattern.UpdatedAt = now

	const query = `INSERT INTO teacher_availability_patterns (id, teacher_id, weekday, slots, created_at, updated_at)
		VALUES (:id, :teacher_id, :weekday, :slots, :created_at, :updated_at)
		ON CONFLICT (teacher_id, weekday) DO UPDATE SET slots = EXCLUDED.slots, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, pattern); err != nil {
		return fmt.Errorf("upsert availability pattern: %w", err)
	}
	return nil
}

// DeletePattern removes the pattern for one teacher/weekday.
func (r *AvailabilityRepository) DeletePattern(ctx context.Context, teacherID string, weekday int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teacher_availability_patterns WHERE teacher_id = $1 AND weekday = $2`, teacherID, weekday); err != nil {
		return fmt.Errorf("delete availability pattern: %w", err)
	}
	return nil
}

// FindOverride loads the daily override for one teacher/date, when present.
func (r *AvailabilityRepository) FindOverride(ctx context.Context, teacherID string, date time.Time) (*models.DailyAvailabilityOverride, error) {
	const query = `SELECT id, teacher_id, date, slots, created_at, updated_at FROM daily_availability_overrides WHERE teacher_id = $1 AND date = $2`
	var override models.DailyAvailabilityOverride
	err := r.db.GetContext(ctx, &override, query, teacherID, date.Format(models.DateLayout))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find availability override: %w", err)
	}
	return &override, nil
}

// UpsertOverride replaces the slot list for one teacher/date.
func (r *AvailabilityRepository) UpsertOverride(ctx context.Context, override *models.DailyAvailabilityOverride) error {
	if override.ID == "" {
		override.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if override.CreatedAt.IsZero() {
		override.CreatedAt = now
	}
	override.UpdatedAt = now

	const query = `INSERT INTO daily_availability_overrides (id, teacher_id, date, slots, created_at, updated_at)
		VALUES (:id, :teacher_id, :date, :slots, :created_at, :updated_at)
		ON CONFLICT (teacher_id, date) DO UPDATE SET slots = EXCLUDED.slots, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, override); err != nil {
		return fmt.Errorf("upsert availability override: %w", err)
	}
	return nil
}
