package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/campus-attendance/internal/models"
	"github.com/Spok95/campus-attendance/internal/observability"
)

// Sender delivers one notification over a channel.
type Sender interface {
	Send(ctx context.Context, n models.AttendanceNotification) error
}

// Queue is the part of the attendance service the dispatcher drains.
type Queue interface {
	PendingNotifications(ctx context.Context, limit int) ([]models.AttendanceNotification, error)
	UpdateNotificationStatus(ctx context.Context, id int64, status models.DeliveryStatus, errMsg *string) (models.AttendanceNotification, error)
}

// LogSender writes the notification to the log instead of delivering it.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, n models.AttendanceNotification) error {
	l := s.Log
	if l == nil {
		l = zap.NewNop()
	}
	l.Info("notification",
		zap.Int64("id", n.ID),
		zap.Int64("student_id", n.StudentID),
		zap.String("channel", string(n.Channel)),
		zap.String("content", n.Content),
	)
	return nil
}

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts PUSH notifications to a single Telegram chat.
type TelegramSender struct {
	bot    botAPI
	chatID int64
}

func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &TelegramSender{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSender) Send(ctx context.Context, n models.AttendanceNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, n.Content))
	if isSystemErr(err) {
		observability.CaptureErr(err)
	}
	return err
}

// 5xx, 429 and timeouts are worth reporting. Bad requests are not.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "timeout")
}

var errNoSender = errors.New("no sender for channel")

// Dispatcher drains PENDING notifications and records the delivery outcome.
type Dispatcher struct {
	queue    Queue
	senders  map[models.NotificationChannel]Sender
	fallback Sender
	batch    int
	log      *zap.Logger
}

// NewDispatcher uses fallback for channels without a dedicated sender. A nil
// fallback marks such notifications FAILED.
func NewDispatcher(q Queue, senders map[models.NotificationChannel]Sender, fallback Sender, batch int, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if senders == nil {
		senders = map[models.NotificationChannel]Sender{}
	}
	return &Dispatcher{queue: q, senders: senders, fallback: fallback, batch: batch, log: log}
}

// Run delivers one batch. Delivery failures are recorded on the notification;
// only queue errors are returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	pending, err := d.queue.PendingNotifications(ctx, d.batch)
	if err != nil {
		return err
	}
	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		status, errMsg := models.DeliverySent, (*string)(nil)
		if err := d.deliver(ctx, n); err != nil {
			msg := err.Error()
			status, errMsg = models.DeliveryFailed, &msg
			d.log.Warn("notification delivery failed",
				zap.Int64("id", n.ID),
				zap.String("channel", string(n.Channel)),
				zap.Error(err),
			)
		}
		notificationsDelivered.WithLabelValues(string(n.Channel), string(status)).Inc()
		if _, err := d.queue.UpdateNotificationStatus(ctx, n.ID, status, errMsg); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		d.log.Debug("notifications dispatched", zap.Int("count", len(pending)))
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, n models.AttendanceNotification) error {
	s, ok := d.senders[n.Channel]
	if !ok {
		s = d.fallback
	}
	if s == nil {
		return fmt.Errorf("%w %s", errNoSender, n.Channel)
	}
	return s.Send(ctx, n)
}
