package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/metrics"
	"github.com/Spok95/campus-attendance/internal/models"
)

const maxPendingBatch = 500

type NotificationRequest struct {
	AttendanceID int64                      `json:"attendance_id" validate:"required,gt=0"`
	Channel      models.NotificationChannel `json:"notification_type" validate:"omitempty,oneof=SMS EMAIL PUSH"`
	// Content defaults to the rendered status message.
	Content string `json:"content" validate:"omitempty,max=2000"`
}

// RenderNotification is the default message for a record.
func RenderNotification(rec models.AttendanceRecord) string {
	return fmt.Sprintf("Student %d marked %s on %s (period %d).", rec.StudentID, rec.Status, rec.Date, rec.PeriodNumber)
}

// notify enqueues a notification for statuses configured to trigger one. It
// runs after the record write has committed and never fails it.
func (s *Service) notify(ctx context.Context, rec models.AttendanceRecord) {
	if !s.notifyOn[rec.Status] {
		return
	}
	if _, err := s.enqueue(ctx, rec, s.notifyChannel, RenderNotification(rec)); err != nil {
		s.log.Error("enqueue notification",
			zap.Int64("attendance_id", rec.ID),
			zap.Int64("student_id", rec.StudentID),
			zap.Error(err),
		)
	}
}

func (s *Service) enqueue(ctx context.Context, rec models.AttendanceRecord, ch models.NotificationChannel, content string) (models.AttendanceNotification, error) {
	now := s.now().UTC()
	n, err := s.store.CreateNotification(ctx, models.AttendanceNotification{
		StudentID:    rec.StudentID,
		AttendanceID: rec.ID,
		Channel:      ch,
		Status:       models.DeliveryPending,
		Content:      content,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return models.AttendanceNotification{}, apperr.Persistence("create notification", err)
	}
	metrics.NotificationsEnqueued.WithLabelValues(string(ch)).Inc()
	return n, nil
}

// CreateNotification enqueues a notification for an existing record.
func (s *Service) CreateNotification(ctx context.Context, req NotificationRequest) (models.AttendanceNotification, error) {
	if c, ok := models.ParseChannel(string(req.Channel)); ok {
		req.Channel = c
	}
	if err := s.validate.Struct(req); err != nil {
		return models.AttendanceNotification{}, ValidationError(err)
	}
	rec, err := s.GetRecord(ctx, req.AttendanceID)
	if err != nil {
		return models.AttendanceNotification{}, err
	}
	ch := req.Channel
	if ch == "" {
		ch = s.notifyChannel
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		content = RenderNotification(rec)
	}
	return s.enqueue(ctx, rec, ch, content)
}

// UpdateNotificationStatus records a delivery outcome. sent_at is set only
// for SENT.
func (s *Service) UpdateNotificationStatus(ctx context.Context, id int64, status models.DeliveryStatus, errMsg *string) (models.AttendanceNotification, error) {
	st, ok := models.ParseDeliveryStatus(string(status))
	if !ok {
		return models.AttendanceNotification{}, apperr.Invalid("status", "must be one of PENDING, SENT, FAILED")
	}
	now := s.now().UTC()
	var sentAt *time.Time
	if st == models.DeliverySent {
		sentAt = &now
	}
	if errMsg != nil && strings.TrimSpace(*errMsg) == "" {
		errMsg = nil
	}
	n, err := s.store.UpdateNotificationStatus(ctx, id, st, errMsg, sentAt, now)
	if err != nil {
		return models.AttendanceNotification{}, apperr.Persistence("update notification", err)
	}
	return n, nil
}

// PendingNotifications lists queued notifications, oldest first.
func (s *Service) PendingNotifications(ctx context.Context, limit int) ([]models.AttendanceNotification, error) {
	if limit <= 0 || limit > maxPendingBatch {
		limit = maxPendingBatch
	}
	ns, err := s.store.ListPendingNotifications(ctx, limit)
	if err != nil {
		return nil, apperr.Persistence("list notifications", err)
	}
	return ns, nil
}
