package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorhive/tutorhive-api/internal/models"
)

const suspensionRequestColumns = "id, enrollment_id, applicant_type, applicant_id, reason, status, quota_consumed, created_at, updated_at"

// SuspensionRequestRepository provides persistence for suspension requests.
type SuspensionRequestRepository struct {
	db *sqlx.DB
}

// NewSuspensionRequestRepository creates a new suspension request repository.
func NewSuspensionRequestRepository(db *sqlx.DB) *SuspensionRequestRepository {
	return &SuspensionRequestRepository{db: db}
}

// FindByID loads a suspension request by id.
func (r *SuspensionRequestRepository) FindByID(ctx context.Context, id string) (*models.SuspensionRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM suspension_requests WHERE id = $1", suspensionRequestColumns)
	var request models.SuspensionRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ListByEnrollment returns suspension requests for one enrollment.
func (r *SuspensionRequestRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SuspensionRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM suspension_requests WHERE enrollment_id = $1 ORDER BY created_at DESC", suspensionRequestColumns)
	var requests []models.SuspensionRequest
	if err := r.db.SelectContext(ctx, &requests, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list suspension requests: %w", err)
	}
	return requests, nil
}

// Create stores a new suspension request.
func (r *SuspensionRequestRepository) Create(ctx context.Context, request *models.SuspensionRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = models.SuspensionStatusPending
	}

	const query = `INSERT INTO suspension_requests (id, enrollment_id, applicant_type, applicant_id, reason, status, quota_consumed, created_at, updated_at)
		VALUES (:id, :enrollment_id, :applicant_type, :applicant_id, :reason, :status, :quota_consumed, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create suspension request: %w", err)
	}
	return nil
}

// UpdateStatus transitions a suspension request only from the expected
// prior status, returning false when the guard did not match.
func (r *SuspensionRequestRepository) UpdateStatus(ctx context.Context, id string, from, to models.SuspensionRequestStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE suspension_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update suspension request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update suspension request status rows: %w", err)
	}
	return affected == 1, nil
}

// UpdateStatusWithTx is UpdateStatus inside an existing transaction.
func (r *SuspensionRequestRepository) UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, from, to models.SuspensionRequestStatus) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE suspension_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update suspension request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update suspension request status rows: %w", err)
	}
	return affected == 1, nil
}
