package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/models"
)

func (s *Store) CreateQRCode(ctx context.Context, qr models.QRCodeEvidence) (models.QRCodeEvidence, error) {
	if err := ctx.Err(); err != nil {
		return models.QRCodeEvidence{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.qrByCode[qr.Code]; ok {
		return models.QRCodeEvidence{}, fmt.Errorf("qr code: %w", apperr.ErrConflict)
	}
	qr.ID = s.nextID()
	qr.DeviceInfo = cloneRaw(qr.DeviceInfo)
	s.qrByID[qr.ID] = &qr
	s.qrByCode[qr.Code] = qr.ID
	return qr, nil
}

func (s *Store) ConsumeQRCode(ctx context.Context, code string, scannedAt time.Time, device json.RawMessage) (models.QRCodeEvidence, error) {
	if err := ctx.Err(); err != nil {
		return models.QRCodeEvidence{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.qrByCode[code]
	if !ok {
		return models.QRCodeEvidence{}, apperr.ErrInvalidOrExpired
	}
	qr := s.qrByID[id]
	if !qr.IsValid || (qr.ExpiresAt != nil && !scannedAt.Before(*qr.ExpiresAt)) {
		return models.QRCodeEvidence{}, apperr.ErrInvalidOrExpired
	}
	qr.IsValid = false
	at := scannedAt
	qr.ScannedAt = &at
	if device != nil {
		qr.DeviceInfo = cloneRaw(device)
	}
	return *qr, nil
}

func (s *Store) LinkQRCode(ctx context.Context, qrID, attendanceID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	qr, ok := s.qrByID[qrID]
	if !ok {
		return fmt.Errorf("qr code %d: %w", qrID, apperr.ErrNotFound)
	}
	id := attendanceID
	qr.AttendanceID = &id
	return nil
}

func (s *Store) CreateGeolocation(ctx context.Context, g models.GeolocationEvidence) (models.GeolocationEvidence, error) {
	if err := ctx.Err(); err != nil {
		return models.GeolocationEvidence{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g.ID = s.nextID()
	g.DeviceInfo = cloneRaw(g.DeviceInfo)
	s.geo[g.ID] = &g
	return g, nil
}

func (s *Store) LinkGeolocation(ctx context.Context, geoID, attendanceID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.geo[geoID]
	if !ok {
		return fmt.Errorf("geolocation %d: %w", geoID, apperr.ErrNotFound)
	}
	id := attendanceID
	g.AttendanceID = &id
	return nil
}
