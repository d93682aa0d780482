package attendance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Spok95/campus-attendance/internal/models"
)

// RecordStore persists attendance records together with their audit trail.
// CreateRecord and UpdateRecordStatus each commit the record write and the
// audit append as one unit; neither is visible without the other.
type RecordStore interface {
	// CreateRecord fails with apperr.ErrConflict when a record for the same
	// (student, date, period, subject) exists.
	CreateRecord(ctx context.Context, rec models.AttendanceRecord, audit models.AuditLogEntry) (models.AttendanceRecord, error)
	// UpdateRecordStatus fills audit.OldStatus from the locked row. Unknown id
	// is apperr.ErrNotFound.
	UpdateRecordStatus(ctx context.Context, id int64, status models.AttendanceStatus, at time.Time, audit models.AuditLogEntry) (models.AttendanceRecord, models.AuditLogEntry, error)
	GetRecord(ctx context.Context, id int64) (models.AttendanceRecord, error)
	// QueryRecords orders by (date, period_number, id) ascending.
	QueryRecords(ctx context.Context, f models.RecordFilter) ([]models.AttendanceRecord, error)
	ListAudit(ctx context.Context, attendanceID int64) ([]models.AuditLogEntry, error)
}

type EvidenceStore interface {
	CreateQRCode(ctx context.Context, qr models.QRCodeEvidence) (models.QRCodeEvidence, error)
	// ConsumeQRCode clears the validity flag of a valid, unexpired code.
	// Exactly one concurrent caller wins; the rest get apperr.ErrInvalidOrExpired.
	ConsumeQRCode(ctx context.Context, code string, scannedAt time.Time, device json.RawMessage) (models.QRCodeEvidence, error)
	LinkQRCode(ctx context.Context, qrID, attendanceID int64) error

	CreateGeolocation(ctx context.Context, g models.GeolocationEvidence) (models.GeolocationEvidence, error)
	LinkGeolocation(ctx context.Context, geoID, attendanceID int64) error
}

type SyncStore interface {
	CreateSyncBatch(ctx context.Context, b models.OfflineSyncBatch) (models.OfflineSyncBatch, error)
	GetSyncBatch(ctx context.Context, batchID string) (models.OfflineSyncBatch, error)
	// CompleteSyncBatch moves a PENDING batch to a terminal status. A batch
	// that is missing or no longer PENDING is apperr.ErrNotFound.
	CompleteSyncBatch(ctx context.Context, batchID string, status models.SyncStatus, failure *models.BatchFailure, at time.Time) (models.OfflineSyncBatch, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n models.AttendanceNotification) (models.AttendanceNotification, error)
	UpdateNotificationStatus(ctx context.Context, id int64, status models.DeliveryStatus, errMsg *string, sentAt *time.Time, at time.Time) (models.AttendanceNotification, error)
	ListPendingNotifications(ctx context.Context, limit int) ([]models.AttendanceNotification, error)
}

// Store is the full storage boundary of the attendance subsystem.
type Store interface {
	RecordStore
	EvidenceStore
	SyncStore
	NotificationStore
	Ping(ctx context.Context) error
}
