package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/models"
	"github.com/Spok95/campus-attendance/internal/storage/memory"
)

type recordingSender struct {
	sent []int64
	err  error
}

func (s *recordingSender) Send(_ context.Context, n models.AttendanceNotification) error {
	s.sent = append(s.sent, n.ID)
	return s.err
}

func seedAbsences(t *testing.T, svc *attendance.Service, n int) {
	t.Helper()
	staff := models.Principal{ID: 1, Role: models.RoleTeacher}
	for i := 0; i < n; i++ {
		_, err := svc.MarkManual(context.Background(), staff, models.Caller{}, models.AttendanceEvent{
			StudentID: int64(10 + i), ClassSectionID: 1, SubjectID: 1, TeacherID: 1,
			Date: models.DateOf(2024, time.March, 4), PeriodNumber: 1, Status: models.StatusAbsent,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func newQueue(t *testing.T) *attendance.Service {
	t.Helper()
	return attendance.NewService(memory.New(), attendance.Options{
		NotifyOn:      []models.AttendanceStatus{models.StatusAbsent},
		NotifyChannel: models.ChannelPush,
	})
}

func TestDispatcher_MarksSent(t *testing.T) {
	svc := newQueue(t)
	seedAbsences(t, svc, 3)

	push := &recordingSender{}
	d := NewDispatcher(svc, map[models.NotificationChannel]Sender{models.ChannelPush: push}, nil, 2, nil)

	ctx := context.Background()
	if err := d.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(push.sent) != 2 {
		t.Fatalf("first run sent %d, want batch of 2", len(push.sent))
	}
	if err := d.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(push.sent) != 3 {
		t.Fatalf("sent %d, want 3", len(push.sent))
	}
	left, err := svc.PendingNotifications(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Fatalf("still pending: %d", len(left))
	}
}

func TestDispatcher_FailureIsRecorded(t *testing.T) {
	svc := newQueue(t)
	seedAbsences(t, svc, 1)

	push := &recordingSender{err: errors.New("chat not found")}
	d := NewDispatcher(svc, map[models.NotificationChannel]Sender{models.ChannelPush: push}, nil, 10, nil)
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(push.sent) != 1 {
		t.Fatalf("sent %d", len(push.sent))
	}
	// FAILED is terminal, a second run must not retry it.
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(push.sent) != 1 {
		t.Fatalf("failed notification retried")
	}
}

func TestDispatcher_NoSenderFails(t *testing.T) {
	svc := newQueue(t)
	seedAbsences(t, svc, 1)

	d := NewDispatcher(svc, nil, nil, 10, nil)
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	left, _ := svc.PendingNotifications(context.Background(), 10)
	if len(left) != 0 {
		t.Fatalf("notification without sender left pending")
	}
}

func TestDispatcher_FallbackSender(t *testing.T) {
	svc := newQueue(t)
	seedAbsences(t, svc, 2)

	fb := &recordingSender{}
	d := NewDispatcher(svc, nil, fb, 10, nil)
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fb.sent) != 2 {
		t.Fatalf("fallback sent %d", len(fb.sent))
	}
}

type fakeBot struct {
	chatID int64
	text   string
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m := c.(tgbotapi.MessageConfig)
	b.chatID, b.text = m.ChatID, m.Text
	return tgbotapi.Message{}, nil
}

func TestTelegramSender(t *testing.T) {
	bot := &fakeBot{}
	s := &TelegramSender{bot: bot, chatID: 42}
	if err := s.Send(context.Background(), models.AttendanceNotification{Content: "absent"}); err != nil {
		t.Fatal(err)
	}
	if bot.chatID != 42 || bot.text != "absent" {
		t.Fatalf("bot got %d %q", bot.chatID, bot.text)
	}
}

func TestRunner_RecoversAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(ctx, nil)
	calls := make(chan struct{}, 8)
	r.Every(5*time.Millisecond, "panicky", func(context.Context) error {
		calls <- struct{}{}
		panic("boom")
	})
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not run again after panic")
		}
	}
	cancel()
	r.Wait()
}
