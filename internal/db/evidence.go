package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/ctxutil"
	"github.com/Spok95/campus-attendance/internal/models"
)

const qrColumns = `id, attendance_id, qr_code, scanned_at, device_info, is_valid, expires_at, created_at`

func scanQR(row scanner) (models.QRCodeEvidence, error) {
	var (
		q       models.QRCodeEvidence
		attID   sql.NullInt64
		scanned sql.NullTime
		device  []byte
		expires sql.NullTime
	)
	if err := row.Scan(&q.ID, &attID, &q.Code, &scanned, &device, &q.IsValid, &expires, &q.CreatedAt); err != nil {
		return models.QRCodeEvidence{}, err
	}
	q.AttendanceID = nullInt64(attID)
	q.ScannedAt = nullTime(scanned)
	q.DeviceInfo = jsonValue(device)
	q.ExpiresAt = nullTime(expires)
	return q, nil
}

func (s *Store) CreateQRCode(ctx context.Context, qr models.QRCodeEvidence) (models.QRCodeEvidence, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	created, err := scanQR(s.db.QueryRowContext(ctx, `
		INSERT INTO qr_code_attendance (attendance_id, qr_code, device_info, is_valid, expires_at, created_at)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6)
		ON CONFLICT (qr_code) DO NOTHING
		RETURNING `+qrColumns,
		qr.AttendanceID, qr.Code, jsonArg(qr.DeviceInfo), qr.IsValid, qr.ExpiresAt, qr.CreatedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return models.QRCodeEvidence{}, fmt.Errorf("qr code: %w", apperr.ErrConflict)
	}
	return created, err
}

// ConsumeQRCode is a single conditional UPDATE, so concurrent scans of one
// code race in the database and only one row update wins.
func (s *Store) ConsumeQRCode(ctx context.Context, code string, scannedAt time.Time, device json.RawMessage) (models.QRCodeEvidence, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	qr, err := scanQR(s.db.QueryRowContext(ctx, `
		UPDATE qr_code_attendance
		SET is_valid = FALSE,
		    scanned_at = $2,
		    device_info = COALESCE($3::jsonb, device_info)
		WHERE qr_code = $1
		  AND is_valid
		  AND (expires_at IS NULL OR expires_at > $2)
		RETURNING `+qrColumns, code, scannedAt, jsonArg(device)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.QRCodeEvidence{}, apperr.ErrInvalidOrExpired
	}
	return qr, err
}

func (s *Store) LinkQRCode(ctx context.Context, qrID, attendanceID int64) error {
	return s.link(ctx, "qr_code_attendance", qrID, attendanceID)
}

func (s *Store) LinkGeolocation(ctx context.Context, geoID, attendanceID int64) error {
	return s.link(ctx, "geolocation_attendance", geoID, attendanceID)
}

// link sets attendance_id on an evidence table; table is never user input.
func (s *Store) link(ctx context.Context, table string, id, attendanceID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `UPDATE `+table+` SET attendance_id = $1 WHERE id = $2`, attendanceID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("%s %d: %w", table, id, apperr.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateGeolocation(ctx context.Context, g models.GeolocationEvidence) (models.GeolocationEvidence, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var (
		attID  sql.NullInt64
		device []byte
	)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO geolocation_attendance
			(attendance_id, latitude, longitude, accuracy, device_info, distance_meters, is_within_bounds, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
		RETURNING id, attendance_id, latitude, longitude, accuracy, device_info, distance_meters, is_within_bounds, created_at
	`, g.AttendanceID, g.Latitude, g.Longitude, g.Accuracy, jsonArg(g.DeviceInfo), g.DistanceMeters, g.IsWithinBounds, g.CreatedAt).
		Scan(&g.ID, &attID, &g.Latitude, &g.Longitude, &g.Accuracy, &device, &g.DistanceMeters, &g.IsWithinBounds, &g.CreatedAt)
	if err != nil {
		return models.GeolocationEvidence{}, err
	}
	g.AttendanceID = nullInt64(attID)
	g.DeviceInfo = jsonValue(device)
	return g, nil
}
