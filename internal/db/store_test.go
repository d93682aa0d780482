//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/db"
	"github.com/Spok95/campus-attendance/internal/models"
	"github.com/Spok95/campus-attendance/internal/testutil/testdb"
)

var (
	staff  = models.Principal{ID: 900, Role: models.RoleTeacher}
	caller = models.Caller{IPAddress: "192.0.2.10", UserAgent: "db-test"}
	day    = models.DateOf(2024, time.March, 6)
)

func startStore(t *testing.T) (*db.Store, *testdb.DBHandle) {
	t.Helper()
	h, err := testdb.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Close)
	return db.New(h.DB), h
}

func record(student int64, period int, status models.AttendanceStatus) models.AttendanceRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return models.AttendanceRecord{
		StudentID: student, ClassSectionID: 7, SubjectID: 3, TeacherID: staff.ID,
		Date: day, PeriodNumber: period, Status: status, MarkingMethod: models.MethodManual,
		MarkedAt: now, CreatedAt: now, UpdatedAt: now,
	}
}

func createAudit(status models.AttendanceStatus) models.AuditLogEntry {
	return models.AuditLogEntry{
		ModifiedBy: staff.ID, NewStatus: status, Action: models.AuditCreate,
		Reason: "Initial attendance marking", IPAddress: caller.IPAddress, UserAgent: caller.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateRecord_ConflictAndAudit(t *testing.T) {
	st, _ := startStore(t)
	ctx := context.Background()

	rec, err := st.CreateRecord(ctx, record(12, 2, models.StatusPresent), createAudit(models.StatusPresent))
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID == 0 || rec.Date.String() != "2024-03-06" {
		t.Fatalf("created: %+v", rec)
	}
	if _, err := st.CreateRecord(ctx, record(12, 2, models.StatusAbsent), createAudit(models.StatusAbsent)); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("want conflict, got %v", err)
	}

	entries, err := st.ListAudit(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != models.AuditCreate || entries[0].OldStatus != nil {
		t.Fatalf("audit after conflict: %+v", entries)
	}
}

func TestUpdateRecordStatus_AuditsOldStatus(t *testing.T) {
	st, _ := startStore(t)
	ctx := context.Background()

	rec, err := st.CreateRecord(ctx, record(12, 1, models.StatusAbsent), createAudit(models.StatusAbsent))
	if err != nil {
		t.Fatal(err)
	}
	upd := models.AuditLogEntry{ModifiedBy: staff.ID, NewStatus: models.StatusLate, Action: models.AuditUpdate, Reason: "note", CreatedAt: time.Now().UTC()}
	got, entry, err := st.UpdateRecordStatus(ctx, rec.ID, models.StatusLate, time.Now().UTC(), upd)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusLate || entry.OldStatus == nil || *entry.OldStatus != models.StatusAbsent || entry.ID == 0 {
		t.Fatalf("update: rec=%+v entry=%+v", got, entry)
	}
	if _, _, err := st.UpdateRecordStatus(ctx, 999999, models.StatusLate, time.Now().UTC(), upd); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestQueryRecords_Filters(t *testing.T) {
	st, _ := startStore(t)
	ctx := context.Background()

	for i, s := range []models.AttendanceStatus{models.StatusPresent, models.StatusAbsent, models.StatusLate} {
		if _, err := st.CreateRecord(ctx, record(5, 3-i, s), createAudit(s)); err != nil {
			t.Fatal(err)
		}
	}
	student := int64(5)
	from := day.Time
	all, err := st.QueryRecords(ctx, models.RecordFilter{StudentID: &student, From: &from, To: &from})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].PeriodNumber != 1 || all[2].PeriodNumber != 3 {
		t.Fatalf("ordering: %+v", all)
	}
	missed, err := st.QueryRecords(ctx, models.RecordFilter{
		StudentID: &student,
		Statuses:  []models.AttendanceStatus{models.StatusAbsent, models.StatusLate},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(missed) != 2 {
		t.Fatalf("status filter: %d", len(missed))
	}
}

func TestConsumeQRCode_SingleWinner(t *testing.T) {
	st, _ := startStore(t)
	ctx := context.Background()

	qr, err := st.CreateQRCode(ctx, models.QRCodeEvidence{Code: "lab-1", IsValid: true, CreatedAt: time.Now().UTC(), DeviceInfo: []byte(`{"room":"lab"}`)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateQRCode(ctx, models.QRCodeEvidence{Code: "lab-1", IsValid: true, CreatedAt: time.Now().UTC()}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate code: %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.ConsumeQRCode(ctx, qr.Code, time.Now().UTC(), nil)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, apperr.ErrInvalidOrExpired) {
				t.Errorf("consume: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("winners = %d", wins)
	}

	expired := time.Now().UTC().Add(-time.Minute)
	old, _ := st.CreateQRCode(ctx, models.QRCodeEvidence{Code: "stale", IsValid: true, ExpiresAt: &expired, CreatedAt: time.Now().UTC()})
	if _, err := st.ConsumeQRCode(ctx, old.Code, time.Now().UTC(), nil); !errors.Is(err, apperr.ErrInvalidOrExpired) {
		t.Fatalf("expired code consumed: %v", err)
	}
}

func TestSyncBatch_TerminalOnce(t *testing.T) {
	st, _ := startStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	b, err := st.CreateSyncBatch(ctx, models.OfflineSyncBatch{
		BatchID: "batch-1", DeviceID: "tablet-3", Status: models.SyncPending,
		Records:     []models.OfflineRecord{{StudentID: 1, ClassSectionID: 7, SubjectID: 3, TeacherID: 900, Date: day, Status: models.StatusPresent, LocalID: "a"}},
		SubmittedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Records) != 1 || b.Records[0].Date.String() != "2024-03-06" {
		t.Fatalf("sync_data round trip: %+v", b.Records)
	}

	failure := &models.BatchFailure{Index: 0, LocalID: "a", Error: "boom", Kind: models.FailurePersistence}
	done, err := st.CompleteSyncBatch(ctx, "batch-1", models.SyncFailed, failure, now)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != models.SyncFailed || done.Failure == nil || done.Failure.LocalID != "a" || done.CompletedAt == nil {
		t.Fatalf("completed: %+v", done)
	}
	if _, err := st.CompleteSyncBatch(ctx, "batch-1", models.SyncSynced, nil, now); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("terminal batch overwritten: %v", err)
	}
}

func TestNotifications(t *testing.T) {
	st, _ := startStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := st.CreateNotification(ctx, models.AttendanceNotification{AttendanceID: 4242, Channel: models.ChannelEmail, Status: models.DeliveryPending, CreatedAt: now, UpdatedAt: now}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("dangling record: %v", err)
	}
	rec, _ := st.CreateRecord(ctx, record(12, 1, models.StatusAbsent), createAudit(models.StatusAbsent))
	n, err := st.CreateNotification(ctx, models.AttendanceNotification{
		StudentID: 12, AttendanceID: rec.ID, Channel: models.ChannelEmail, Status: models.DeliveryPending,
		Content: "Student 12 marked ABSENT", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
	pending, err := st.ListPendingNotifications(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending: %v %v", pending, err)
	}
	sent, err := st.UpdateNotificationStatus(ctx, n.ID, models.DeliverySent, nil, &now, now)
	if err != nil || sent.SentAt == nil {
		t.Fatalf("sent: %+v %v", sent, err)
	}
	pending, _ = st.ListPendingNotifications(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("still pending: %+v", pending)
	}
}

// Runs the whole service on Postgres for the offline replay scenario.
func TestService_ProcessBatchOnPostgres(t *testing.T) {
	st, _ := startStore(t)
	svc := attendance.NewService(st, attendance.Options{})
	ctx := context.Background()

	bad := models.OfflineRecord{StudentID: 2, ClassSectionID: 7, SubjectID: 3, TeacherID: 900, Date: day, Status: "NOPE", LocalID: "b"}
	ok1 := models.OfflineRecord{StudentID: 1, ClassSectionID: 7, SubjectID: 3, TeacherID: 900, Date: day, Status: models.StatusPresent, LocalID: "a"}
	ok3 := models.OfflineRecord{StudentID: 3, ClassSectionID: 7, SubjectID: 3, TeacherID: 900, Date: day, Status: models.StatusPresent, LocalID: "c"}

	b, err := svc.SubmitBatch(ctx, "tablet-3", []models.OfflineRecord{ok1, bad, ok3})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := svc.ProcessBatch(ctx, b.BatchID, staff, caller)
	if ok || err == nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	got, _ := svc.GetBatch(ctx, b.BatchID)
	if got.Status != models.SyncFailed || got.Failure == nil || got.Failure.Index != 1 {
		t.Fatalf("batch: %+v", got)
	}
	r1, _ := svc.QueryStudent(ctx, 1, attendance.DateRange{}, nil)
	r3, _ := svc.QueryStudent(ctx, 3, attendance.DateRange{}, nil)
	if len(r1) != 1 || len(r3) != 0 {
		t.Fatalf("partial replay: #1=%d #3=%d", len(r1), len(r3))
	}
}
