package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "PRESENT"
	StatusAbsent  AttendanceStatus = "ABSENT"
	StatusLate    AttendanceStatus = "LATE"
	StatusOnLeave AttendanceStatus = "ON_LEAVE"
)

var AllStatuses = []AttendanceStatus{StatusPresent, StatusAbsent, StatusLate, StatusOnLeave}

// StatusNames lists AllStatuses for error messages.
func StatusNames() string {
	names := make([]string, len(AllStatuses))
	for i, s := range AllStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// ParseStatus also accepts EXCUSED as an alias of ON_LEAVE.
func ParseStatus(s string) (AttendanceStatus, bool) {
	switch st := AttendanceStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPresent, StatusAbsent, StatusLate, StatusOnLeave:
		return st, true
	case "EXCUSED":
		return StatusOnLeave, true
	}
	return "", false
}

func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusOnLeave:
		return true
	}
	return false
}

type MarkingMethod string

const (
	MethodManual      MarkingMethod = "MANUAL"
	MethodQRCode      MarkingMethod = "QR_CODE"
	MethodGeolocation MarkingMethod = "GEOLOCATION"
	MethodOfflineSync MarkingMethod = "OFFLINE_SYNC"
)

// AttendanceRecord is one entry per (student, date, period, subject).
type AttendanceRecord struct {
	ID             int64            `json:"id"`
	StudentID      int64            `json:"student_id"`
	ClassSectionID int64            `json:"class_section_id"`
	SubjectID      int64            `json:"subject_id"`
	TeacherID      int64            `json:"teacher_id"`
	Date           Date             `json:"date"`
	PeriodNumber   int              `json:"period_number"`
	Status         AttendanceStatus `json:"status"`
	MarkingMethod  MarkingMethod    `json:"marking_method"`
	Remarks        *string          `json:"remarks,omitempty"`
	SyncBatchID    *string          `json:"sync_batch_id,omitempty"`
	MarkedAt       time.Time        `json:"marked_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// AttendanceEvent is the normalized candidate record an intake channel produces.
type AttendanceEvent struct {
	StudentID      int64            `json:"student_id" validate:"required,gt=0"`
	ClassSectionID int64            `json:"class_section_id" validate:"required,gt=0"`
	SubjectID      int64            `json:"subject_id" validate:"required,gt=0"`
	TeacherID      int64            `json:"teacher_id" validate:"required,gt=0"`
	Date           Date             `json:"date" validate:"required"`
	PeriodNumber   int              `json:"period_number" validate:"gte=0,lte=24"`
	Status         AttendanceStatus `json:"status" validate:"required,attstatus"`
	Remarks        *string          `json:"remarks,omitempty" validate:"omitempty,max=500"`
}

type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
)

// AuditLogEntry is immutable once written.
type AuditLogEntry struct {
	ID           int64             `json:"id"`
	AttendanceID int64             `json:"attendance_id"`
	ModifiedBy   int64             `json:"modified_by"`
	OldStatus    *AttendanceStatus `json:"old_status"`
	NewStatus    AttendanceStatus  `json:"new_status"`
	Action       AuditAction       `json:"action"`
	Reason       string            `json:"reason"`
	IPAddress    string            `json:"ip_address"`
	UserAgent    string            `json:"user_agent"`
	CreatedAt    time.Time         `json:"created_at"`
}

type QRCodeEvidence struct {
	ID           int64           `json:"id"`
	AttendanceID *int64          `json:"attendance_id,omitempty"`
	Code         string          `json:"qr_code"`
	ScannedAt    *time.Time      `json:"scanned_at,omitempty"`
	DeviceInfo   json.RawMessage `json:"device_info,omitempty"`
	IsValid      bool            `json:"is_valid"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type GeolocationEvidence struct {
	ID             int64           `json:"id"`
	AttendanceID   *int64          `json:"attendance_id,omitempty"`
	Latitude       float64         `json:"latitude"`
	Longitude      float64         `json:"longitude"`
	Accuracy       float64         `json:"accuracy"`
	DeviceInfo     json.RawMessage `json:"device_info,omitempty"`
	DistanceMeters float64         `json:"distance_meters"`
	IsWithinBounds bool            `json:"is_within_bounds"`
	CreatedAt      time.Time       `json:"created_at"`
}

type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "FAILED"
)

// OfflineRecord is a record buffered on a disconnected device. It is stored
// as submitted and only validated on replay: a record that does not decode
// keeps its raw payload and reports the decode error from Event.
type OfflineRecord struct {
	StudentID       int64            `json:"student_id" validate:"required,gt=0"`
	ClassSectionID  int64            `json:"class_section_id" validate:"required,gt=0"`
	SubjectID       int64            `json:"subject_id" validate:"required,gt=0"`
	TeacherID       int64            `json:"teacher_id" validate:"required,gt=0"`
	Date            Date             `json:"date" validate:"required"`
	PeriodNumber    int              `json:"period_number" validate:"gte=0,lte=24"`
	Status          AttendanceStatus `json:"status" validate:"required,attstatus"`
	Remarks         *string          `json:"remarks,omitempty" validate:"omitempty,max=500"`
	DeviceTimestamp *time.Time       `json:"device_timestamp,omitempty"`
	LocalID         string           `json:"local_id"`

	raw       json.RawMessage
	decodeErr error
}

type offlineRecord OfflineRecord

func (r *OfflineRecord) UnmarshalJSON(b []byte) error {
	var rec offlineRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		var id struct {
			LocalID any `json:"local_id"`
		}
		_ = json.Unmarshal(b, &id)
		*r = OfflineRecord{decodeErr: err}
		if id.LocalID != nil {
			r.LocalID = fmt.Sprint(id.LocalID)
		}
	} else {
		*r = OfflineRecord(rec)
	}
	r.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (r OfflineRecord) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	return json.Marshal(offlineRecord(r))
}

// Event converts the record to a manual-equivalent event. Status goes through
// ParseStatus, so lowercase names and EXCUSED are accepted.
func (r OfflineRecord) Event() (AttendanceEvent, error) {
	if r.decodeErr != nil {
		return AttendanceEvent{}, r.decodeErr
	}
	status := r.Status
	if st, ok := ParseStatus(string(status)); ok {
		status = st
	}
	return AttendanceEvent{
		StudentID:      r.StudentID,
		ClassSectionID: r.ClassSectionID,
		SubjectID:      r.SubjectID,
		TeacherID:      r.TeacherID,
		Date:           r.Date,
		PeriodNumber:   r.PeriodNumber,
		Status:         status,
		Remarks:        r.Remarks,
	}, nil
}

type BatchFailureKind string

const (
	FailureValidation  BatchFailureKind = "validation"
	FailureConflict    BatchFailureKind = "conflict"
	FailureNotFound    BatchFailureKind = "not_found"
	FailurePersistence BatchFailureKind = "persistence"
)

// BatchFailure points at the buffered record that stopped a replay.
type BatchFailure struct {
	Index   int              `json:"index"`
	LocalID string           `json:"local_id,omitempty"`
	Error   string           `json:"error"`
	Kind    BatchFailureKind `json:"kind"`
}

type OfflineSyncBatch struct {
	ID          int64           `json:"id"`
	BatchID     string          `json:"sync_id"`
	DeviceID    string          `json:"device_id"`
	Records     []OfflineRecord `json:"sync_data"`
	Status      SyncStatus      `json:"sync_status"`
	Failure     *BatchFailure   `json:"error_details,omitempty"`
	SubmittedAt time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"synced_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type NotificationChannel string

const (
	ChannelSMS   NotificationChannel = "SMS"
	ChannelEmail NotificationChannel = "EMAIL"
	ChannelPush  NotificationChannel = "PUSH"
)

func ParseChannel(s string) (NotificationChannel, bool) {
	switch c := NotificationChannel(strings.ToUpper(strings.TrimSpace(s))); c {
	case ChannelSMS, ChannelEmail, ChannelPush:
		return c, true
	}
	return "", false
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	switch d := DeliveryStatus(strings.ToUpper(strings.TrimSpace(s))); d {
	case DeliveryPending, DeliverySent, DeliveryFailed:
		return d, true
	}
	return "", false
}

type AttendanceNotification struct {
	ID           int64               `json:"id"`
	StudentID    int64               `json:"student_id"`
	AttendanceID int64               `json:"attendance_id"`
	Channel      NotificationChannel `json:"notification_type"`
	Status       DeliveryStatus      `json:"status"`
	Content      string              `json:"content"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	SentAt       *time.Time          `json:"sent_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// RecordFilter narrows record queries. Nil fields are unrestricted; From and
// To are inclusive calendar dates.
type RecordFilter struct {
	StudentID      *int64
	ClassSectionID *int64
	SubjectID      *int64
	PeriodNumber   *int
	Statuses       []AttendanceStatus
	From           *time.Time
	To             *time.Time
}
