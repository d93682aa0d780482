// Package attendance is the attendance subsystem: the audited record store,
// the intake channels (manual, QR code, geolocation, offline sync), the
// notification queue and the statistics computed over the records.
package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/metrics"
	"github.com/Spok95/campus-attendance/internal/models"
)

const reasonInitialMarking = "Initial attendance marking"

type Options struct {
	Logger *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// QRCodeTTL of 0 issues codes that never expire.
	QRCodeTTL time.Duration
	// NotifyOn lists statuses that enqueue a notification to the student.
	NotifyOn      []models.AttendanceStatus
	NotifyChannel models.NotificationChannel
	// Location resolves "today" for time-framed reports. Defaults to UTC.
	Location *time.Location
}

type Service struct {
	store    Store
	log      *zap.Logger
	now      func() time.Time
	validate *validator.Validate

	qrTTL         time.Duration
	notifyOn      map[models.AttendanceStatus]bool
	notifyChannel models.NotificationChannel
	loc           *time.Location

	batches *keyedLock
}

func NewService(store Store, opt Options) *Service {
	s := &Service{
		store:         store,
		log:           opt.Logger,
		now:           opt.Now,
		validate:      NewValidator(),
		qrTTL:         opt.QRCodeTTL,
		notifyOn:      make(map[models.AttendanceStatus]bool, len(opt.NotifyOn)),
		notifyChannel: opt.NotifyChannel,
		loc:           opt.Location,
		batches:       newKeyedLock(),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.notifyChannel == "" {
		s.notifyChannel = models.ChannelEmail
	}
	for _, st := range opt.NotifyOn {
		s.notifyOn[st] = true
	}
	return s
}

// Validator exposes the validator so the HTTP layer reports the same field
// errors as the service.
func (s *Service) Validator() *validator.Validate { return s.validate }

func (s *Service) Ping(ctx context.Context) error {
	return apperr.Persistence("ping", s.store.Ping(ctx))
}

// MarkManual records attendance supplied directly by a staff member.
func (s *Service) MarkManual(ctx context.Context, p models.Principal, caller models.Caller, ev models.AttendanceEvent) (models.AttendanceRecord, error) {
	if err := s.validateEvent(ev); err != nil {
		return models.AttendanceRecord{}, err
	}
	return s.createRecord(ctx, p, caller, ev, models.MethodManual, nil, reasonInitialMarking)
}

func (s *Service) validateEvent(ev models.AttendanceEvent) error {
	if err := s.validate.Struct(ev); err != nil {
		return ValidationError(err)
	}
	return nil
}

// createRecord writes the record and its CREATE audit entry as one unit.
// The event must already be validated.
func (s *Service) createRecord(ctx context.Context, p models.Principal, caller models.Caller,
	ev models.AttendanceEvent, method models.MarkingMethod, batchID *string, reason string) (models.AttendanceRecord, error) {

	now := s.now().UTC()
	rec := models.AttendanceRecord{
		StudentID:      ev.StudentID,
		ClassSectionID: ev.ClassSectionID,
		SubjectID:      ev.SubjectID,
		TeacherID:      ev.TeacherID,
		Date:           ev.Date,
		PeriodNumber:   ev.PeriodNumber,
		Status:         ev.Status,
		MarkingMethod:  method,
		Remarks:        ev.Remarks,
		SyncBatchID:    batchID,
		MarkedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	audit := models.AuditLogEntry{
		ModifiedBy: p.ID,
		NewStatus:  ev.Status,
		Action:     models.AuditCreate,
		Reason:     reason,
		IPAddress:  caller.IPAddress,
		UserAgent:  caller.UserAgent,
		CreatedAt:  now,
	}

	created, err := s.store.CreateRecord(ctx, rec, audit)
	if err != nil {
		return models.AttendanceRecord{}, apperr.Persistence("create attendance", err)
	}
	metrics.ObserveRecordCreated(method)
	s.log.Debug("attendance created",
		zap.Int64("id", created.ID),
		zap.Int64("student_id", created.StudentID),
		zap.String("date", created.Date.String()),
		zap.Int("period", created.PeriodNumber),
		zap.String("status", string(created.Status)),
		zap.String("method", string(method)),
		zap.Int64("by", p.ID),
	)
	s.notify(ctx, created)
	return created, nil
}

// UpdateStatus changes the status in place and appends an UPDATE audit entry.
// Every call appends, including one that repeats the current status.
func (s *Service) UpdateStatus(ctx context.Context, p models.Principal, caller models.Caller,
	id int64, status models.AttendanceStatus, reason string) (models.AttendanceRecord, error) {

	var fields []apperr.FieldError
	if !status.Valid() {
		fields = append(fields, apperr.FieldError{Field: "status", Error: "must be one of PRESENT, ABSENT, LATE, ON_LEAVE"})
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		fields = append(fields, apperr.FieldError{Field: "reason", Error: "is required"})
	}
	if len(fields) > 0 {
		return models.AttendanceRecord{}, apperr.NewValidationError(nil, fields...)
	}

	now := s.now().UTC()
	audit := models.AuditLogEntry{
		AttendanceID: id,
		ModifiedBy:   p.ID,
		NewStatus:    status,
		Action:       models.AuditUpdate,
		Reason:       reason,
		IPAddress:    caller.IPAddress,
		UserAgent:    caller.UserAgent,
		CreatedAt:    now,
	}
	rec, entry, err := s.store.UpdateRecordStatus(ctx, id, status, now, audit)
	if err != nil {
		return models.AttendanceRecord{}, apperr.Persistence("update attendance", err)
	}
	metrics.StatusUpdates.Inc()
	old := ""
	if entry.OldStatus != nil {
		old = string(*entry.OldStatus)
	}
	s.log.Debug("attendance updated",
		zap.Int64("id", rec.ID),
		zap.String("old", old),
		zap.String("new", string(status)),
		zap.Int64("by", p.ID),
	)
	s.notify(ctx, rec)
	return rec, nil
}

func (s *Service) GetRecord(ctx context.Context, id int64) (models.AttendanceRecord, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return models.AttendanceRecord{}, apperr.Persistence("get attendance", err)
	}
	return rec, nil
}

// QueryStudent returns a student's records ordered by (date, period). A zero
// range returns the full history; no statuses means any status.
func (s *Service) QueryStudent(ctx context.Context, studentID int64, rng DateRange, subjectID *int64, statuses ...models.AttendanceStatus) ([]models.AttendanceRecord, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, apperr.Invalid("status", "must be one of PRESENT, ABSENT, LATE, ON_LEAVE")
		}
	}
	f := rng.filter()
	f.StudentID = &studentID
	f.SubjectID = subjectID
	f.Statuses = statuses
	recs, err := s.store.QueryRecords(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("query attendance", err)
	}
	return recs, nil
}

// ListAudit returns the audit trail of a record, oldest first.
func (s *Service) ListAudit(ctx context.Context, recordID int64) ([]models.AuditLogEntry, error) {
	if _, err := s.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListAudit(ctx, recordID)
	if err != nil {
		return nil, apperr.Persistence("list audit", err)
	}
	return entries, nil
}
