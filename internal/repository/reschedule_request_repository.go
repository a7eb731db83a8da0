package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorhive/tutorhive-api/internal/models"
)

const rescheduleRequestColumns = "id, enrollment_id, session_id, type, status, applicant_type, applicant_id, new_date, new_slot, new_weekdays, new_slots, reason, quota_consumed, created_at, updated_at"

// RescheduleRequestRepository provides persistence for change requests.
type RescheduleRequestRepository struct {
	db *sqlx.DB
}

// NewRescheduleRequestRepository creates a new reschedule request repository.
func NewRescheduleRequestRepository(db *sqlx.DB) *RescheduleRequestRepository {
	return &RescheduleRequestRepository{db: db}
}

// FindByID loads a reschedule request by id.
func (r *RescheduleRequestRepository) FindByID(ctx context.Context, id string) (*models.RescheduleRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM reschedule_requests WHERE id = $1", rescheduleRequestColumns)
	var request models.RescheduleRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ListByEnrollment returns all change requests for one enrollment.
func (r *RescheduleRequestRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.RescheduleRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM reschedule_requests WHERE enrollment_id = $1 ORDER BY created_at DESC", rescheduleRequestColumns)
	var requests []models.RescheduleRequest
	if err := r.db.SelectContext(ctx, &requests, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list reschedule requests: %w", err)
	}
	return requests, nil
}

// Create stores a new reschedule request.
func (r *RescheduleRequestRepository) Create(ctx context.Context, request *models.RescheduleRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = models.RescheduleStatusPending
	}

	const query = `INSERT INTO reschedule_requests (id, enrollment_id, session_id, type, status, applicant_type, applicant_id, new_date, new_slot, new_weekdays, new_slots, reason, quota_consumed, created_at, updated_at)
		VALUES (:id, :enrollment_id, :session_id, :type, :status, :applicant_type, :applicant_id, :new_date, :new_slot, :new_weekdays, :new_slots, :reason, :quota_consumed, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create reschedule request: %w", err)
	}
	return nil
}

// UpdateStatus transitions a reschedule request only from the expected
// prior status, returning false when the guard did not match.
func (r *RescheduleRequestRepository) UpdateStatus(ctx context.Context, id string, from, to models.RescheduleRequestStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE reschedule_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update reschedule request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update reschedule request status rows: %w", err)
	}
	return affected == 1, nil
}

// UpdateStatusWithTx is UpdateStatus inside an existing transaction.
func (r *RescheduleRequestRepository) UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, from, to models.RescheduleRequestStatus) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE reschedule_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update reschedule request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update reschedule request status rows: %w", err)
	}
	return affected == 1, nil
}
