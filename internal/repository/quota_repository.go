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

// QuotaRepository persists monthly adjustment counters. Increments and
// decrements are single atomic statements so concurrent workflows never
// need the booking lock for quota accounting.
type QuotaRepository struct {
	db *sqlx.DB
}

// NewQuotaRepository creates a new quota repository.
func NewQuotaRepository(db *sqlx.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// Increment bumps the counter for the actor/enrollment/month, creating
// the row on first use, and returns the post-increment value.
func (r *QuotaRepository) Increment(ctx context.Context, actorType models.ActorType, actorID, enrollmentID, monthKey string) (int, error) {
	const query = `INSERT INTO monthly_adjustment_counters (id, actor_type, actor_id, enrollment_id, month_key, used_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $6)
		ON CONFLICT (actor_type, actor_id, enrollment_id, month_key)
		DO UPDATE SET used_count = monthly_adjustment_counters.used_count + 1, updated_at = $6
		RETURNING used_count`
	var used int
	if err := r.db.GetContext(ctx, &used, query, uuid.NewString(), actorType, actorID, enrollmentID, monthKey, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("increment quota counter: %w", err)
	}
	return used, nil
}

// Decrement lowers the counter, floored at zero, and returns the
// post-decrement value.
func (r *QuotaRepository) Decrement(ctx context.Context, actorType models.ActorType, actorID, enrollmentID, monthKey string) (int, error) {
	const query = `UPDATE monthly_adjustment_counters
		SET used_count = GREATEST(used_count - 1, 0), updated_at = $5
		WHERE actor_type = $1 AND actor_id = $2 AND enrollment_id = $3 AND month_key = $4
		RETURNING used_count`
	var used int
	err := r.db.GetContext(ctx, &used, query, actorType, actorID, enrollmentID, monthKey, time.Now().UTC())
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("decrement quota counter: %w", err)
	}
	return used, nil
}

// Used returns the current counter value without mutation.
func (r *QuotaRepository) Used(ctx context.Context, actorType models.ActorType, actorID, enrollmentID, monthKey string) (int, error) {
	const query = `SELECT used_count FROM monthly_adjustment_counters WHERE actor_type = $1 AND actor_id = $2 AND enrollment_id = $3 AND month_key = $4`
	var used int
	err := r.db.GetContext(ctx, &used, query, actorType, actorID, enrollmentID, monthKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("read quota counter: %w", err)
	}
	return used, nil
}
