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

const sessionColumns = "id, enrollment_id, teacher_id, student_id, date, start_tick, end_tick, session_number, status, is_trial, created_at, updated_at"

// SessionRepository provides persistence for lesson sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID loads a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions with optional filtering and pagination.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	base := "FROM sessions WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, filter.From.Format(models.DateLayout))
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, filter.To.Format(models.DateLayout))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date ASC, start_tick ASC LIMIT %d OFFSET %d", sessionColumns, base, size, offset)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	return sessions, total, nil
}

// ListActiveByTeacherDate returns non-cancelled sessions for a teacher
// on one date, the busy-index rebuild source.
func (r *SessionRepository) ListActiveByTeacherDate(ctx context.Context, teacherID string, date time.Time) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE teacher_id = $1 AND date = $2 AND status <> $3 ORDER BY start_tick ASC", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, teacherID, date.Format(models.DateLayout), models.SessionStatusCancelled); err != nil {
		return nil, fmt.Errorf("list sessions by teacher/date: %w", err)
	}
	return sessions, nil
}

// FindTeacherConflicts returns non-cancelled teacher sessions
// overlapping [startTick, endTick) on the date.
func (r *SessionRepository) FindTeacherConflicts(ctx context.Context, teacherID string, date time.Time, startTick, endTick int) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE teacher_id = $1 AND date = $2 AND status <> $3 AND start_tick < $4 AND end_tick > $5", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, teacherID, date.Format(models.DateLayout), models.SessionStatusCancelled, endTick, startTick); err != nil {
		return nil, fmt.Errorf("find teacher session conflicts: %w", err)
	}
	return sessions, nil
}

// FindStudentConflicts returns non-cancelled student sessions
// overlapping [startTick, endTick) on the date.
func (r *SessionRepository) FindStudentConflicts(ctx context.Context, studentID string, date time.Time, startTick, endTick int) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE student_id = $1 AND date = $2 AND status <> $3 AND start_tick < $4 AND end_tick > $5", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, studentID, date.Format(models.DateLayout), models.SessionStatusCancelled, endTick, startTick); err != nil {
		return nil, fmt.Errorf("find student session conflicts: %w", err)
	}
	return sessions, nil
}

// CountTrialsByStudent counts trial sessions a student has held.
// Cancelled trials are excluded unless countCancelled is set; a
// non-zero window restricts the check to the trailing period.
func (r *SessionRepository) CountTrialsByStudent(ctx context.Context, studentID string, countCancelled bool, since *time.Time) (int, error) {
	base := "SELECT COUNT(*) FROM sessions WHERE student_id = $1 AND is_trial = TRUE"
	args := []interface{}{studentID}
	if !countCancelled {
		base += fmt.Sprintf(" AND status <> $%d", len(args)+1)
		args = append(args, models.SessionStatusCancelled)
	}
	if since != nil {
		base += fmt.Sprintf(" AND date >= $%d", len(args)+1)
		args = append(args, since.Format(models.DateLayout))
	}
	var count int
	if err := r.db.GetContext(ctx, &count, base, args...); err != nil {
		return 0, fmt.Errorf("count trials by student: %w", err)
	}
	return count, nil
}

// TrialExistsAt reports whether any non-cancelled trial session already
// occupies the exact tick for the teacher on the date.
func (r *SessionRepository) TrialExistsAt(ctx context.Context, teacherID string, date time.Time, startTick int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM sessions WHERE teacher_id = $1 AND date = $2 AND is_trial = TRUE AND status <> $3 AND start_tick = $4)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teacherID, date.Format(models.DateLayout), models.SessionStatusCancelled, startTick); err != nil {
		return false, fmt.Errorf("check trial at tick: %w", err)
	}
	return exists, nil
}

// Create stores a single session row.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	return r.insert(ctx, r.db, session)
}

// BulkCreateWithTx inserts sessions using an existing transaction.
// Session materialisation is all-or-nothing.
func (r *SessionRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, sessions []models.Session) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	for i := range sessions {
		if err := r.insert(ctx, tx, &sessions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *SessionRepository) insert(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = models.SessionStatusScheduled
	}

	const query = `INSERT INTO sessions (id, enrollment_id, teacher_id, student_id, date, start_tick, end_tick, session_number, status, is_trial, created_at, updated_at)
		VALUES (:id, :enrollment_id, :teacher_id, :student_id, :date, :start_tick, :end_tick, :session_number, :status, :is_trial, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateStatusWithTx transitions one session inside an existing
// transaction, so the caller can bundle it with the request state flip.
func (r *SessionRepository) UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, status models.SessionStatus) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// RescheduleWithTx moves one session to a new date and tick range
// inside an existing transaction.
func (r *SessionRepository) RescheduleWithTx(ctx context.Context, tx *sqlx.Tx, id string, date time.Time, startTick, endTick int) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET date = $1, start_tick = $2, end_tick = $3, updated_at = $4 WHERE id = $5`,
		date.Format(models.DateLayout), startTick, endTick, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("reschedule session: %w", err)
	}
	return nil
}

// CancelForwardByEnrollment cancels scheduled sessions from the given
// date onward, returning the affected rows for cache invalidation.
func (r *SessionRepository) CancelForwardByEnrollment(ctx context.Context, enrollmentID string, from time.Time) ([]models.Session, error) {
	query := fmt.Sprintf(`UPDATE sessions SET status = $1, updated_at = $2 WHERE enrollment_id = $3 AND status = $4 AND date >= $5 RETURNING %s`, sessionColumns)
	var cancelled []models.Session
	if err := r.db.SelectContext(ctx, &cancelled, query, models.SessionStatusCancelled, time.Now().UTC(), enrollmentID, models.SessionStatusScheduled, from.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("cancel forward sessions: %w", err)
	}
	return cancelled, nil
}

// CancelForwardByEnrollmentWithTx is CancelForwardByEnrollment inside
// an existing transaction, for pattern replacement where the cancel
// and the replacement sessions must land together.
func (r *SessionRepository) CancelForwardByEnrollmentWithTx(ctx context.Context, tx *sqlx.Tx, enrollmentID string, from time.Time) ([]models.Session, error) {
	if tx == nil {
		return nil, fmt.Errorf("nil transaction provided")
	}
	query := fmt.Sprintf(`UPDATE sessions SET status = $1, updated_at = $2 WHERE enrollment_id = $3 AND status = $4 AND date >= $5 RETURNING %s`, sessionColumns)
	var cancelled []models.Session
	if err := tx.SelectContext(ctx, &cancelled, query, models.SessionStatusCancelled, time.Now().UTC(), enrollmentID, models.SessionStatusScheduled, from.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("cancel forward sessions: %w", err)
	}
	return cancelled, nil
}

// ListForwardByEnrollment returns scheduled sessions from the date onward.
func (r *SessionRepository) ListForwardByEnrollment(ctx context.Context, enrollmentID string, from time.Time) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE enrollment_id = $1 AND status = $2 AND date >= $3 ORDER BY date ASC, start_tick ASC", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, enrollmentID, models.SessionStatusScheduled, from.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("list forward sessions: %w", err)
	}
	return sessions, nil
}

// SweepExpired marks scheduled sessions whose end time has passed as
// completed, returning how many rows changed.
func (r *SessionRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	// end_tick is minutes/30 from midnight; a session has expired once
	// its date plus end_tick*30 minutes is behind the clock.
	const query = `UPDATE sessions SET status = $1, updated_at = $2
		WHERE status = $3 AND (date + (end_tick * INTERVAL '30 minutes')) <= $2`
	res, err := r.db.ExecContext(ctx, query, models.SessionStatusCompleted, now.UTC(), models.SessionStatusScheduled)
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions rows: %w", err)
	}
	return affected, nil
}
