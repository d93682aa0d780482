package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/models"
)

func (s *Store) CreateNotification(ctx context.Context, n models.AttendanceNotification) (models.AttendanceNotification, error) {
	if err := ctx.Err(); err != nil {
		return models.AttendanceNotification{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[n.AttendanceID]; !ok {
		return models.AttendanceNotification{}, fmt.Errorf("attendance %d: %w", n.AttendanceID, apperr.ErrNotFound)
	}
	n.ID = s.nextID()
	s.notifications[n.ID] = &n
	return n, nil
}

func (s *Store) UpdateNotificationStatus(ctx context.Context, id int64, status models.DeliveryStatus, errMsg *string, sentAt *time.Time, at time.Time) (models.AttendanceNotification, error) {
	if err := ctx.Err(); err != nil {
		return models.AttendanceNotification{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return models.AttendanceNotification{}, fmt.Errorf("notification %d: %w", id, apperr.ErrNotFound)
	}
	n.Status = status
	n.ErrorMessage = errMsg
	n.SentAt = sentAt
	n.UpdatedAt = at
	return *n, nil
}

func (s *Store) ListPendingNotifications(ctx context.Context, limit int) ([]models.AttendanceNotification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AttendanceNotification, 0)
	for _, n := range s.notifications {
		if n.Status == models.DeliveryPending {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
