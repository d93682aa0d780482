package attendance_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/models"
)

func offline(student int64, period int, localID string) models.OfflineRecord {
	return models.OfflineRecord{
		StudentID:      student,
		ClassSectionID: 7,
		SubjectID:      3,
		TeacherID:      teacher.ID,
		Date:           day,
		PeriodNumber:   period,
		Status:         models.StatusPresent,
		LocalID:        localID,
	}
}

func queryable(t *testing.T, svc *attendance.Service, student int64) int {
	t.Helper()
	recs, err := svc.QueryStudent(context.Background(), student, attendance.DateRange{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return len(recs)
}

func TestProcessBatch_AllValid(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	b, err := svc.SubmitBatch(ctx, "tablet-3", []models.OfflineRecord{
		offline(1, 1, "a"), offline(2, 1, "b"), offline(3, 1, "c"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.SyncPending || b.BatchID == "" {
		t.Fatalf("submitted batch: %+v", b)
	}

	ok, err := svc.ProcessBatch(ctx, b.BatchID, teacher, caller)
	if err != nil || !ok {
		t.Fatalf("process: ok=%v err=%v", ok, err)
	}
	got, err := svc.GetBatch(ctx, b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.SyncSynced || got.CompletedAt == nil || got.Failure != nil {
		t.Fatalf("batch after sync: %+v", got)
	}
	for _, s := range []int64{1, 2, 3} {
		if n := queryable(t, svc, s); n != 1 {
			t.Fatalf("student %d: %d records", s, n)
		}
	}
	recs, _ := svc.QueryStudent(ctx, 2, attendance.DateRange{}, nil)
	if recs[0].MarkingMethod != models.MethodOfflineSync || recs[0].SyncBatchID == nil || *recs[0].SyncBatchID != b.BatchID {
		t.Fatalf("replayed record: %+v", recs[0])
	}
	audit, _ := svc.ListAudit(ctx, recs[0].ID)
	if len(audit) != 1 || audit[0].Reason != "Offline sync batch "+b.BatchID+", local id b" {
		t.Fatalf("replay audit: %+v", audit)
	}

	again, err := svc.ProcessBatch(ctx, b.BatchID, teacher, caller)
	if again || err != nil {
		t.Fatalf("terminal batch reprocessed: ok=%v err=%v", again, err)
	}
}

func TestProcessBatch_HaltsAtFirstFailure(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	bad := offline(2, 1, "b")
	bad.Status = "SOMETIMES"
	b, err := svc.SubmitBatch(ctx, "tablet-3", []models.OfflineRecord{offline(1, 1, "a"), bad, offline(3, 1, "c")})
	if err != nil {
		t.Fatalf("submission must not validate payload: %v", err)
	}

	ok, err := svc.ProcessBatch(ctx, b.BatchID, teacher, caller)
	if ok {
		t.Fatal("batch with a bad record reported success")
	}
	var re *apperr.BatchReplayError
	if !errors.As(err, &re) || re.Index != 1 || re.LocalID != "b" || !apperr.IsValidation(err) {
		t.Fatalf("want replay error at #2, got %v", err)
	}

	got, _ := svc.GetBatch(ctx, b.BatchID)
	if got.Status != models.SyncFailed || got.Failure == nil {
		t.Fatalf("batch: %+v", got)
	}
	if got.Failure.Index != 1 || got.Failure.LocalID != "b" || got.Failure.Kind != models.FailureValidation {
		t.Fatalf("failure detail: %+v", got.Failure)
	}
	if queryable(t, svc, 1) != 1 {
		t.Fatal("record #1 must stay committed")
	}
	if queryable(t, svc, 3) != 0 {
		t.Fatal("record #3 must not be replayed")
	}

	if ok, err := svc.ProcessBatch(ctx, b.BatchID, teacher, caller); ok || err != nil {
		t.Fatalf("FAILED is terminal: ok=%v err=%v", ok, err)
	}
}

func TestProcessBatch_NormalizesStatus(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	lower := offline(1, 1, "a")
	lower.Status = "present"
	excused := offline(2, 1, "b")
	excused.Status = "EXCUSED"
	b, _ := svc.SubmitBatch(ctx, "tablet-3", []models.OfflineRecord{lower, excused})

	if ok, err := svc.ProcessBatch(ctx, b.BatchID, teacher, caller); !ok || err != nil {
		t.Fatalf("process: ok=%v err=%v", ok, err)
	}
	recs, _ := svc.QueryStudent(ctx, 1, attendance.DateRange{}, nil)
	if len(recs) != 1 || recs[0].Status != models.StatusPresent {
		t.Fatalf("student 1: %+v", recs)
	}
	recs, _ = svc.QueryStudent(ctx, 2, attendance.DateRange{}, nil)
	if len(recs) != 1 || recs[0].Status != models.StatusOnLeave {
		t.Fatalf("student 2: %+v", recs)
	}
}

func TestProcessBatch_UndecodableRecord(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	payload := `[
		{"student_id":1,"class_section_id":7,"subject_id":3,"teacher_id":900,"date":"2024-03-06","period_number":1,"status":"PRESENT","local_id":"a"},
		{"student_id":2,"class_section_id":7,"subject_id":3,"teacher_id":900,"date":"06/03/2024","period_number":1,"status":"PRESENT","local_id":"b"},
		{"student_id":3,"class_section_id":7,"subject_id":3,"teacher_id":900,"date":"2024-03-06","period_number":1,"status":"PRESENT","local_id":"c"}
	]`
	var records []models.OfflineRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		t.Fatalf("decode must be lenient: %v", err)
	}
	b, err := svc.SubmitBatch(ctx, "tablet-3", records)
	if err != nil {
		t.Fatal(err)
	}
	stored, _ := json.Marshal(b.Records[1])
	if !json.Valid(stored) || !strings.Contains(string(stored), "06/03/2024") {
		t.Fatalf("payload not kept as submitted: %s", stored)
	}

	_, err = svc.ProcessBatch(ctx, b.BatchID, teacher, caller)
	if !apperr.IsValidation(err) {
		t.Fatalf("want validation failure, got %v", err)
	}
	got, _ := svc.GetBatch(ctx, b.BatchID)
	if got.Failure == nil || got.Failure.Index != 1 || got.Failure.LocalID != "b" || got.Failure.Kind != models.FailureValidation {
		t.Fatalf("failure detail: %+v", got.Failure)
	}
	if queryable(t, svc, 1) != 1 || queryable(t, svc, 3) != 0 {
		t.Fatal("replay must stop at record #2")
	}
}

func TestProcessBatch_ConflictKind(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.MarkManual(ctx, teacher, caller, event(1, 1, models.StatusAbsent)); err != nil {
		t.Fatal(err)
	}
	b, _ := svc.SubmitBatch(ctx, "tablet-3", []models.OfflineRecord{offline(1, 1, "dup")})
	_, err := svc.ProcessBatch(ctx, b.BatchID, teacher, caller)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
	got, _ := svc.GetBatch(ctx, b.BatchID)
	if got.Failure == nil || got.Failure.Kind != models.FailureConflict {
		t.Fatalf("failure: %+v", got.Failure)
	}
}

func TestProcessBatch_UnknownAndMissingDevice(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	ok, err := svc.ProcessBatch(ctx, "no-such-batch", teacher, caller)
	if ok || err != nil {
		t.Fatalf("unknown batch: ok=%v err=%v", ok, err)
	}
	if _, err := svc.GetBatch(ctx, "no-such-batch"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get unknown: %v", err)
	}
	if _, err := svc.SubmitBatch(ctx, " ", nil); !apperr.IsValidation(err) {
		t.Fatalf("missing device id: %v", err)
	}
}

func TestProcessBatch_CancelledMarksFailed(t *testing.T) {
	svc, _ := newService(t)
	b, _ := svc.SubmitBatch(context.Background(), "tablet-3", []models.OfflineRecord{offline(1, 1, "a")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := svc.ProcessBatch(ctx, b.BatchID, teacher, caller)
	if ok || err == nil {
		t.Fatalf("cancelled replay: ok=%v err=%v", ok, err)
	}
	// the lookup itself runs on the cancelled context
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestProcessBatch_CancelledMidReplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	svc, _ := newService(t, func(o *attendance.Options) {
		o.Now = func() time.Time {
			// createRecord reads the clock once per record
			calls++
			if calls == 3 {
				cancel()
			}
			return time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC)
		}
	})
	b, err := svc.SubmitBatch(context.Background(), "tablet-3", []models.OfflineRecord{
		offline(1, 1, "a"), offline(2, 1, "b"), offline(3, 1, "c"),
	})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := svc.ProcessBatch(ctx, b.BatchID, teacher, caller)
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	got, err := svc.GetBatch(context.Background(), b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.SyncFailed || got.Failure == nil || got.Failure.Kind != models.FailurePersistence {
		t.Fatalf("batch after cancel: %+v", got)
	}
	if queryable(t, svc, 1) != 1 {
		t.Fatal("record committed before the cancel must stay")
	}
}

func TestProcessBatch_ConcurrentSameBatch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	b, _ := svc.SubmitBatch(ctx, "tablet-3", []models.OfflineRecord{offline(1, 1, "a"), offline(2, 1, "b")})

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.ProcessBatch(ctx, b.BatchID, teacher, caller)
			if err != nil {
				t.Errorf("process: %v", err)
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("batch processed %d times", wins)
	}
}
