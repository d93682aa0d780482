package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/ctxutil"
	"github.com/Spok95/campus-attendance/internal/models"
)

const recordColumns = `id, student_id, class_section_id, subject_id, teacher_id, date, period_number,
	status, marking_method, remarks, sync_batch_id, marked_at, created_at, updated_at`

func scanRecord(row scanner) (models.AttendanceRecord, error) {
	var (
		r       models.AttendanceRecord
		date    time.Time
		remarks sql.NullString
		batch   sql.NullString
	)
	if err := row.Scan(&r.ID, &r.StudentID, &r.ClassSectionID, &r.SubjectID, &r.TeacherID, &date, &r.PeriodNumber,
		&r.Status, &r.MarkingMethod, &remarks, &batch, &r.MarkedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return models.AttendanceRecord{}, err
	}
	r.Date = models.NewDate(date)
	r.Remarks = nullString(remarks)
	r.SyncBatchID = nullString(batch)
	return r, nil
}

func insertAudit(ctx context.Context, tx *sql.Tx, e models.AuditLogEntry) (int64, error) {
	var old any
	if e.OldStatus != nil {
		old = string(*e.OldStatus)
	}
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO attendance_audit_logs
			(attendance_id, modified_by, old_status, new_status, action, reason, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, e.AttendanceID, e.ModifiedBy, old, string(e.NewStatus), string(e.Action), e.Reason, e.IPAddress, e.UserAgent, e.CreatedAt).Scan(&id)
	return id, err
}

// CreateRecord inserts the record and its CREATE entry in one transaction. An
// occupied (student, date, period, subject) slot is apperr.ErrConflict.
func (s *Store) CreateRecord(ctx context.Context, rec models.AttendanceRecord, audit models.AuditLogEntry) (models.AttendanceRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO attendance_records
			(student_id, class_section_id, subject_id, teacher_id, date, period_number,
			 status, marking_method, remarks, sync_batch_id, marked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (student_id, date, period_number, subject_id) DO NOTHING
		RETURNING `+recordColumns,
		rec.StudentID, rec.ClassSectionID, rec.SubjectID, rec.TeacherID, rec.Date.Time, rec.PeriodNumber,
		string(rec.Status), string(rec.MarkingMethod), rec.Remarks, rec.SyncBatchID, rec.MarkedAt, rec.CreatedAt, rec.UpdatedAt,
	)
	created, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AttendanceRecord{}, fmt.Errorf("attendance for student %d on %s period %d subject %d: %w",
			rec.StudentID, rec.Date, rec.PeriodNumber, rec.SubjectID, apperr.ErrConflict)
	}
	if err != nil {
		return models.AttendanceRecord{}, err
	}

	audit.AttendanceID = created.ID
	audit.OldStatus = nil
	if _, err := insertAudit(ctx, tx, audit); err != nil {
		return models.AttendanceRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.AttendanceRecord{}, err
	}
	return created, nil
}

// UpdateRecordStatus locks the row to read the previous status, then writes
// the new status and the UPDATE entry together.
func (s *Store) UpdateRecordStatus(ctx context.Context, id int64, status models.AttendanceStatus, at time.Time, audit models.AuditLogEntry) (models.AttendanceRecord, models.AuditLogEntry, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return models.AttendanceRecord{}, models.AuditLogEntry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var old models.AttendanceStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM attendance_records WHERE id = $1 FOR UPDATE`, id).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AttendanceRecord{}, models.AuditLogEntry{}, fmt.Errorf("attendance %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.AttendanceRecord{}, models.AuditLogEntry{}, err
	}

	rec, err := scanRecord(tx.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+recordColumns, string(status), at, id))
	if err != nil {
		return models.AttendanceRecord{}, models.AuditLogEntry{}, err
	}

	audit.AttendanceID = id
	audit.OldStatus = &old
	if audit.ID, err = insertAudit(ctx, tx, audit); err != nil {
		return models.AttendanceRecord{}, models.AuditLogEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.AttendanceRecord{}, models.AuditLogEntry{}, err
	}
	return rec, audit, nil
}

func (s *Store) GetRecord(ctx context.Context, id int64) (models.AttendanceRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rec, err := scanRecord(s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.AttendanceRecord{}, fmt.Errorf("attendance %d: %w", id, apperr.ErrNotFound)
	}
	return rec, err
}

// QueryRecords applies the non-nil filter fields, ordered by date, period and id.
func (s *Store) QueryRecords(ctx context.Context, f models.RecordFilter) ([]models.AttendanceRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.StudentID != nil {
		add("student_id = $%d", *f.StudentID)
	}
	if f.ClassSectionID != nil {
		add("class_section_id = $%d", *f.ClassSectionID)
	}
	if f.SubjectID != nil {
		add("subject_id = $%d", *f.SubjectID)
	}
	if f.PeriodNumber != nil {
		add("period_number = $%d", *f.PeriodNumber)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			statuses = append(statuses, string(st))
		}
		add("status = ANY($%d)", pq.Array(statuses))
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}

	q := `SELECT ` + recordColumns + ` FROM attendance_records`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date, period_number, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.AttendanceRecord, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListAudit(ctx context.Context, attendanceID int64) ([]models.AuditLogEntry, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attendance_id, modified_by, old_status, new_status, action, reason, ip_address, user_agent, created_at
		FROM attendance_audit_logs
		WHERE attendance_id = $1
		ORDER BY id
	`, attendanceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.AuditLogEntry, 0)
	for rows.Next() {
		var (
			e   models.AuditLogEntry
			old sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.AttendanceID, &e.ModifiedBy, &old, &e.NewStatus, &e.Action,
			&e.Reason, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		if old.Valid {
			st := models.AttendanceStatus(old.String)
			e.OldStatus = &st
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
