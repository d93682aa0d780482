// Package memory is an in-process attendance.Store. All tables share one
// lock, so a record and its audit entry become visible together.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/models"
)

type recordKey struct {
	studentID int64
	date      string
	period    int
	subjectID int64
}

type Store struct {
	mu sync.RWMutex

	seq int64

	records map[int64]*models.AttendanceRecord
	unique  map[recordKey]int64
	audit   []models.AuditLogEntry

	qrByID   map[int64]*models.QRCodeEvidence
	qrByCode map[string]int64
	geo      map[int64]*models.GeolocationEvidence

	batches map[string]*models.OfflineSyncBatch

	notifications map[int64]*models.AttendanceNotification
}

var _ attendance.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records:       make(map[int64]*models.AttendanceRecord),
		unique:        make(map[recordKey]int64),
		qrByID:        make(map[int64]*models.QRCodeEvidence),
		qrByCode:      make(map[string]int64),
		geo:           make(map[int64]*models.GeolocationEvidence),
		batches:       make(map[string]*models.OfflineSyncBatch),
		notifications: make(map[int64]*models.AttendanceNotification),
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func keyOf(r models.AttendanceRecord) recordKey {
	return recordKey{studentID: r.StudentID, date: r.Date.String(), period: r.PeriodNumber, subjectID: r.SubjectID}
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

func (s *Store) CreateRecord(ctx context.Context, rec models.AttendanceRecord, audit models.AuditLogEntry) (models.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.AttendanceRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(rec)
	if id, ok := s.unique[k]; ok {
		return models.AttendanceRecord{}, fmt.Errorf("attendance for student %d on %s period %d subject %d (id %d): %w",
			rec.StudentID, rec.Date, rec.PeriodNumber, rec.SubjectID, id, apperr.ErrConflict)
	}
	rec.ID = s.nextID()
	s.records[rec.ID] = &rec
	s.unique[k] = rec.ID

	audit.ID = s.nextID()
	audit.AttendanceID = rec.ID
	audit.OldStatus = nil
	s.audit = append(s.audit, audit)
	return rec, nil
}

func (s *Store) UpdateRecordStatus(ctx context.Context, id int64, status models.AttendanceStatus, at time.Time, audit models.AuditLogEntry) (models.AttendanceRecord, models.AuditLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return models.AttendanceRecord{}, models.AuditLogEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return models.AttendanceRecord{}, models.AuditLogEntry{}, fmt.Errorf("attendance %d: %w", id, apperr.ErrNotFound)
	}
	old := rec.Status
	rec.Status = status
	rec.UpdatedAt = at

	audit.ID = s.nextID()
	audit.AttendanceID = id
	audit.OldStatus = &old
	s.audit = append(s.audit, audit)
	return *rec, audit, nil
}

func (s *Store) GetRecord(ctx context.Context, id int64) (models.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.AttendanceRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[id]; ok {
		return *rec, nil
	}
	return models.AttendanceRecord{}, fmt.Errorf("attendance %d: %w", id, apperr.ErrNotFound)
}

func matches(r *models.AttendanceRecord, f models.RecordFilter) bool {
	switch {
	case f.StudentID != nil && r.StudentID != *f.StudentID:
		return false
	case f.ClassSectionID != nil && r.ClassSectionID != *f.ClassSectionID:
		return false
	case f.SubjectID != nil && r.SubjectID != *f.SubjectID:
		return false
	case f.PeriodNumber != nil && r.PeriodNumber != *f.PeriodNumber:
		return false
	case len(f.Statuses) > 0 && !hasStatus(f.Statuses, r.Status):
		return false
	case f.From != nil && r.Date.Before(*f.From):
		return false
	case f.To != nil && r.Date.After(*f.To):
		return false
	}
	return true
}

func hasStatus(set []models.AttendanceStatus, st models.AttendanceStatus) bool {
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}

func (s *Store) QueryRecords(ctx context.Context, f models.RecordFilter) ([]models.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AttendanceRecord, 0)
	for _, r := range s.records {
		if matches(r, f) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date.Time)
		}
		if a.PeriodNumber != b.PeriodNumber {
			return a.PeriodNumber < b.PeriodNumber
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) ListAudit(ctx context.Context, attendanceID int64) ([]models.AuditLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AuditLogEntry, 0)
	for _, e := range s.audit {
		if e.AttendanceID == attendanceID {
			out = append(out, e)
		}
	}
	return out, nil
}
