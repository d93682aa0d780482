package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/metrics"
	"github.com/Spok95/campus-attendance/internal/models"
)

const reasonQRCheckIn = "QR code check-in"

type IssueQRRequest struct {
	// Code is generated when empty.
	Code         string          `json:"qr_code" validate:"omitempty,max=255"`
	DeviceInfo   json.RawMessage `json:"device_info,omitempty"`
	AttendanceID *int64          `json:"attendance_id,omitempty"`
}

type ScanMetadata struct {
	DeviceInfo json.RawMessage `json:"device_info,omitempty"`
}

// IssueQRCode stores a fresh, valid code.
func (s *Service) IssueQRCode(ctx context.Context, p models.Principal, req IssueQRRequest) (models.QRCodeEvidence, error) {
	if err := s.validate.Struct(req); err != nil {
		return models.QRCodeEvidence{}, ValidationError(err)
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = uuid.NewString()
	}
	now := s.now().UTC()
	qr := models.QRCodeEvidence{
		AttendanceID: req.AttendanceID,
		Code:         code,
		DeviceInfo:   req.DeviceInfo,
		IsValid:      true,
		CreatedAt:    now,
	}
	if s.qrTTL > 0 {
		exp := now.Add(s.qrTTL)
		qr.ExpiresAt = &exp
	}
	created, err := s.store.CreateQRCode(ctx, qr)
	if err != nil {
		return models.QRCodeEvidence{}, apperr.Persistence("issue qr code", err)
	}
	s.log.Debug("qr code issued", zap.Int64("id", created.ID), zap.Int64("by", p.ID))
	return created, nil
}

// VerifyQRCode consumes the code. Unknown, consumed and expired codes all
// fail with apperr.ErrInvalidOrExpired.
func (s *Service) VerifyQRCode(ctx context.Context, code string, scan ScanMetadata) (models.QRCodeEvidence, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		metrics.QRVerifications.WithLabelValues("rejected").Inc()
		return models.QRCodeEvidence{}, apperr.ErrInvalidOrExpired
	}
	qr, err := s.store.ConsumeQRCode(ctx, code, s.now().UTC(), scan.DeviceInfo)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidOrExpired) {
			metrics.QRVerifications.WithLabelValues("rejected").Inc()
		}
		return models.QRCodeEvidence{}, apperr.Persistence("verify qr code", err)
	}
	metrics.QRVerifications.WithLabelValues("accepted").Inc()
	return qr, nil
}

// CheckInWithQR consumes the code and records attendance against it. A
// consumed code stays consumed even when the record cannot be created.
func (s *Service) CheckInWithQR(ctx context.Context, p models.Principal, caller models.Caller,
	code string, scan ScanMetadata, ev models.AttendanceEvent) (models.AttendanceRecord, models.QRCodeEvidence, error) {

	if err := s.validateEvent(ev); err != nil {
		return models.AttendanceRecord{}, models.QRCodeEvidence{}, err
	}
	qr, err := s.VerifyQRCode(ctx, code, scan)
	if err != nil {
		return models.AttendanceRecord{}, models.QRCodeEvidence{}, err
	}
	rec, err := s.createRecord(ctx, p, caller, ev, models.MethodQRCode, nil, reasonQRCheckIn)
	if err != nil {
		return models.AttendanceRecord{}, qr, err
	}
	if err := s.store.LinkQRCode(ctx, qr.ID, rec.ID); err != nil {
		return rec, qr, apperr.Persistence("link qr code", err)
	}
	qr.AttendanceID = &rec.ID
	return rec, qr, nil
}

// RenderQRCodePNG encodes code as a square PNG of size pixels.
func RenderQRCodePNG(code string, size int) ([]byte, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperr.Invalid("qr_code", "is required")
	}
	if size <= 0 {
		size = 256
	}
	if size > 1024 {
		return nil, apperr.Invalid("size", "must be <= 1024")
	}
	return qrcode.Encode(code, qrcode.Medium, size)
}
