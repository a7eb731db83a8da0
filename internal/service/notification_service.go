package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorhive/tutorhive-api/pkg/jobs"
)

// Notification event types emitted by the workflows.
const (
	EventBookingApproved     = "booking.approved"
	EventBookingRejected     = "booking.rejected"
	EventBookingCancelled    = "booking.cancelled"
	EventEnrollmentCancel    = "enrollment.cancelled"
	EventRescheduleApproved  = "reschedule.approved"
	EventRescheduleRejected  = "reschedule.rejected"
	EventRescheduleCancelled = "reschedule.cancelled"
	EventSuspensionApproved  = "suspension.approved"
	EventSuspensionRejected  = "suspension.rejected"
)

// NotificationEvent is the payload handed to the delivery worker.
type NotificationEvent struct {
	Type         string `json:"type"`
	RequestID    string `json:"request_id,omitempty"`
	EnrollmentID string `json:"enrollment_id,omitempty"`
	StudentID    string `json:"student_id,omitempty"`
	TeacherID    string `json:"teacher_id,omitempty"`
}

// NotificationService dispatches workflow events through the
// background queue. Delivery is fire-and-forget: an emit failure never
// fails the originating workflow.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the dispatcher around a worker queue.
func NewNotificationService(cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{logger: logger}
	cfg.Logger = logger
	svc.queue = jobs.NewQueue("notifications", svc.deliver, cfg)
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Emit enqueues one event, logging and dropping it when the queue is
// unavailable.
func (s *NotificationService) Emit(event NotificationEvent) {
	job := jobs.Job{ID: uuid.NewString(), Type: event.Type, Payload: event}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("dropping notification event", zap.String("type", event.Type), zap.Error(err))
	}
}

// deliver hands the event to downstream messaging. The marketplace's
// messaging system consumes these from its own channel; here delivery
// is a structured log line.
func (s *NotificationService) deliver(_ context.Context, job jobs.Job) error {
	event, ok := job.Payload.(NotificationEvent)
	if !ok {
		s.logger.Warn("notification job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	s.logger.Info("notification dispatched",
		zap.String("type", event.Type),
		zap.String("request_id", event.RequestID),
		zap.String("enrollment_id", event.EnrollmentID),
		zap.String("student_id", event.StudentID),
		zap.String("teacher_id", event.TeacherID),
	)
	return nil
}
