package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorhive/tutorhive-api/internal/models"
)

const bookingRequestColumns = "id, student_id, teacher_id, course_id, kind, status, date, slot, weekdays, slots, range_start, range_end, total_times, created_at, updated_at"

// BookingRequestRepository provides persistence for booking requests.
type BookingRequestRepository struct {
	db *sqlx.DB
}

// NewBookingRequestRepository creates a new booking request repository.
func NewBookingRequestRepository(db *sqlx.DB) *BookingRequestRepository {
	return &BookingRequestRepository{db: db}
}

// FindByID loads a booking request by id.
func (r *BookingRequestRepository) FindByID(ctx context.Context, id string) (*models.BookingRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM booking_requests WHERE id = $1", bookingRequestColumns)
	var request models.BookingRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns booking requests with optional filtering and pagination.
func (r *BookingRequestRepository) List(ctx context.Context, filter models.BookingRequestFilter) ([]models.BookingRequest, int, error) {
	base := "FROM booking_requests WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", bookingRequestColumns, base, size, offset)
	var requests []models.BookingRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list booking requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count booking requests: %w", err)
	}

	return requests, total, nil
}

// ListPendingTrialsByTeacherDate returns pending trial requests that
// act as in-flight holds against a teacher's day.
func (r *BookingRequestRepository) ListPendingTrialsByTeacherDate(ctx context.Context, teacherID string, date time.Time) ([]models.BookingRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM booking_requests WHERE teacher_id = $1 AND date = $2 AND kind = $3 AND status = $4", bookingRequestColumns)
	var requests []models.BookingRequest
	if err := r.db.SelectContext(ctx, &requests, query, teacherID, date.Format(models.DateLayout), models.BookingKindTrial, models.BookingStatusPending); err != nil {
		return nil, fmt.Errorf("list pending trial requests: %w", err)
	}
	return requests, nil
}

// ExistsTrialByStudent reports whether the student has any trial
// request not in a terminal rejected/cancelled state.
func (r *BookingRequestRepository) ExistsTrialByStudent(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM booking_requests WHERE student_id = $1 AND kind = $2 AND status IN ($3, $4))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, models.BookingKindTrial, models.BookingStatusPending, models.BookingStatusApproved); err != nil {
		return false, fmt.Errorf("check student trial request: %w", err)
	}
	return exists, nil
}

// Create stores a new booking request.
func (r *BookingRequestRepository) Create(ctx context.Context, request *models.BookingRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = models.BookingStatusPending
	}

	const query = `INSERT INTO booking_requests (id, student_id, teacher_id, course_id, kind, status, date, slot, weekdays, slots, range_start, range_end, total_times, created_at, updated_at)
		VALUES (:id, :student_id, :teacher_id, :course_id, :kind, :status, :date, :slot, :weekdays, :slots, :range_start, :range_end, :total_times, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create booking request: %w", err)
	}
	return nil
}

// UpdateStatus transitions a booking request only from the expected
// prior status, returning false when the guard did not match.
func (r *BookingRequestRepository) UpdateStatus(ctx context.Context, id string, from, to models.BookingRequestStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE booking_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update booking request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update booking request status rows: %w", err)
	}
	return affected == 1, nil
}

// UpdateStatusWithTx is UpdateStatus inside an existing transaction.
func (r *BookingRequestRepository) UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, from, to models.BookingRequestStatus) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE booking_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update booking request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update booking request status rows: %w", err)
	}
	return affected == 1, nil
}
