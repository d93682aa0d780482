package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/ctxutil"
	"github.com/Spok95/campus-attendance/internal/models"
)

const notificationColumns = `id, student_id, attendance_id, notification_type, status, content, error_message, sent_at, created_at, updated_at`

func scanNotification(row scanner) (models.AttendanceNotification, error) {
	var (
		n      models.AttendanceNotification
		errMsg sql.NullString
		sentAt sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.StudentID, &n.AttendanceID, &n.Channel, &n.Status, &n.Content,
		&errMsg, &sentAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return models.AttendanceNotification{}, err
	}
	n.ErrorMessage = nullString(errMsg)
	n.SentAt = nullTime(sentAt)
	return n, nil
}

// CreateNotification refuses a dangling attendance id with apperr.ErrNotFound.
func (s *Store) CreateNotification(ctx context.Context, n models.AttendanceNotification) (models.AttendanceNotification, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	created, err := scanNotification(s.db.QueryRowContext(ctx, `
		INSERT INTO attendance_notifications
			(student_id, attendance_id, notification_type, status, content, created_at, updated_at)
		SELECT $1::bigint, r.id, $3::text, $4::text, $5::text, $6::timestamptz, $7::timestamptz
		FROM attendance_records r
		WHERE r.id = $2
		RETURNING `+notificationColumns,
		n.StudentID, n.AttendanceID, string(n.Channel), string(n.Status), n.Content, n.CreatedAt, n.UpdatedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return models.AttendanceNotification{}, fmt.Errorf("attendance %d: %w", n.AttendanceID, apperr.ErrNotFound)
	}
	return created, err
}

func (s *Store) UpdateNotificationStatus(ctx context.Context, id int64, status models.DeliveryStatus, errMsg *string, sentAt *time.Time, at time.Time) (models.AttendanceNotification, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	n, err := scanNotification(s.db.QueryRowContext(ctx, `
		UPDATE attendance_notifications
		SET status = $2, error_message = $3, sent_at = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+notificationColumns, id, string(status), errMsg, sentAt, at))
	if errors.Is(err, sql.ErrNoRows) {
		return models.AttendanceNotification{}, fmt.Errorf("notification %d: %w", id, apperr.ErrNotFound)
	}
	return n, err
}

func (s *Store) ListPendingNotifications(ctx context.Context, limit int) ([]models.AttendanceNotification, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM attendance_notifications
		WHERE status = 'PENDING'
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.AttendanceNotification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
