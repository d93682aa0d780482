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

const batchColumns = `id, sync_id, device_id, sync_data, sync_status, error_details, created_at, synced_at, updated_at`

func scanBatch(row scanner) (models.OfflineSyncBatch, error) {
	var (
		b       models.OfflineSyncBatch
		data    []byte
		failure []byte
		synced  sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.BatchID, &b.DeviceID, &data, &b.Status, &failure, &b.SubmittedAt, &synced, &b.UpdatedAt); err != nil {
		return models.OfflineSyncBatch{}, err
	}
	if err := json.Unmarshal(data, &b.Records); err != nil {
		return models.OfflineSyncBatch{}, fmt.Errorf("sync batch %s: decode sync_data: %w", b.BatchID, err)
	}
	if len(failure) > 0 {
		b.Failure = &models.BatchFailure{}
		if err := json.Unmarshal(failure, b.Failure); err != nil {
			return models.OfflineSyncBatch{}, fmt.Errorf("sync batch %s: decode error_details: %w", b.BatchID, err)
		}
	}
	b.CompletedAt = nullTime(synced)
	return b, nil
}

func (s *Store) CreateSyncBatch(ctx context.Context, b models.OfflineSyncBatch) (models.OfflineSyncBatch, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	data, err := json.Marshal(b.Records)
	if err != nil {
		return models.OfflineSyncBatch{}, fmt.Errorf("encode sync_data: %w", err)
	}
	created, err := scanBatch(s.db.QueryRowContext(ctx, `
		INSERT INTO offline_attendance_sync (sync_id, device_id, sync_data, sync_status, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6)
		ON CONFLICT (sync_id) DO NOTHING
		RETURNING `+batchColumns,
		b.BatchID, b.DeviceID, string(data), string(b.Status), b.SubmittedAt, b.UpdatedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return models.OfflineSyncBatch{}, fmt.Errorf("sync batch %s: %w", b.BatchID, apperr.ErrConflict)
	}
	return created, err
}

func (s *Store) GetSyncBatch(ctx context.Context, batchID string) (models.OfflineSyncBatch, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	b, err := scanBatch(s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM offline_attendance_sync WHERE sync_id = $1`, batchID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.OfflineSyncBatch{}, fmt.Errorf("sync batch %s: %w", batchID, apperr.ErrNotFound)
	}
	return b, err
}

// CompleteSyncBatch only touches a PENDING row, so a terminal status is
// written at most once.
func (s *Store) CompleteSyncBatch(ctx context.Context, batchID string, status models.SyncStatus, failure *models.BatchFailure, at time.Time) (models.OfflineSyncBatch, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var details any
	if failure != nil {
		raw, err := json.Marshal(failure)
		if err != nil {
			return models.OfflineSyncBatch{}, fmt.Errorf("encode error_details: %w", err)
		}
		details = string(raw)
	}
	b, err := scanBatch(s.db.QueryRowContext(ctx, `
		UPDATE offline_attendance_sync
		SET sync_status = $2, error_details = $3::jsonb, synced_at = $4, updated_at = $4
		WHERE sync_id = $1 AND sync_status = 'PENDING'
		RETURNING `+batchColumns, batchID, string(status), details, at))
	if errors.Is(err, sql.ErrNoRows) {
		return models.OfflineSyncBatch{}, fmt.Errorf("pending sync batch %s: %w", batchID, apperr.ErrNotFound)
	}
	return b, err
}
