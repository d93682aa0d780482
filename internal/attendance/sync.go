package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/ctxutil"
	"github.com/Spok95/campus-attendance/internal/metrics"
	"github.com/Spok95/campus-attendance/internal/models"
)

// SubmitBatch stores the buffered records as a PENDING batch. The payload is
// not validated until replay.
func (s *Service) SubmitBatch(ctx context.Context, deviceID string, records []models.OfflineRecord) (models.OfflineSyncBatch, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return models.OfflineSyncBatch{}, apperr.Invalid("device_id", "is required")
	}
	if records == nil {
		records = []models.OfflineRecord{}
	}
	now := s.now().UTC()
	b, err := s.store.CreateSyncBatch(ctx, models.OfflineSyncBatch{
		BatchID:     uuid.NewString(),
		DeviceID:    deviceID,
		Records:     records,
		Status:      models.SyncPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	})
	if err != nil {
		return models.OfflineSyncBatch{}, apperr.Persistence("create sync batch", err)
	}
	s.log.Debug("sync batch submitted", zap.String("batch_id", b.BatchID), zap.String("device_id", deviceID), zap.Int("records", len(records)))
	return b, nil
}

func (s *Service) GetBatch(ctx context.Context, batchID string) (models.OfflineSyncBatch, error) {
	b, err := s.store.GetSyncBatch(ctx, batchID)
	if err != nil {
		return models.OfflineSyncBatch{}, apperr.Persistence("get sync batch", err)
	}
	return b, nil
}

// ProcessBatch replays a PENDING batch in submission order. It reports false
// with a nil error when there is no PENDING batch with that id. The first
// failing record stops the replay and marks the batch FAILED; records created
// before it stay committed.
func (s *Service) ProcessBatch(ctx context.Context, batchID string, p models.Principal, caller models.Caller) (bool, error) {
	unlock, err := s.batches.lock(ctx, batchID)
	if err != nil {
		return false, apperr.Persistence("lock sync batch", err)
	}
	defer unlock()

	b, err := s.store.GetSyncBatch(ctx, batchID)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Persistence("get sync batch", err)
	}
	if b.Status != models.SyncPending {
		return false, nil
	}

	for i, r := range b.Records {
		if err := ctx.Err(); err != nil {
			return false, s.failBatch(ctx, b, i, r, err)
		}
		ev, err := r.Event()
		if err != nil {
			return false, s.failBatch(ctx, b, i, r, apperr.Invalid("sync_data", err.Error()))
		}
		if err := s.validateEvent(ev); err != nil {
			return false, s.failBatch(ctx, b, i, r, err)
		}
		reason := fmt.Sprintf("Offline sync batch %s, local id %s", b.BatchID, r.LocalID)
		if _, err := s.createRecord(ctx, p, caller, ev, models.MethodOfflineSync, &b.BatchID, reason); err != nil {
			return false, s.failBatch(ctx, b, i, r, err)
		}
	}

	if _, err := s.store.CompleteSyncBatch(ctx, b.BatchID, models.SyncSynced, nil, s.now().UTC()); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, apperr.Persistence("complete sync batch", err)
	}
	metrics.ObserveSyncBatch(models.SyncSynced)
	s.log.Info("sync batch synced", zap.String("batch_id", b.BatchID), zap.Int("records", len(b.Records)))
	return true, nil
}

// failBatch records the failure on a context detached from ctx so a cancelled
// caller still leaves the batch FAILED.
func (s *Service) failBatch(ctx context.Context, b models.OfflineSyncBatch, idx int, r models.OfflineRecord, cause error) error {
	failure := &models.BatchFailure{
		Index:   idx,
		LocalID: r.LocalID,
		Error:   cause.Error(),
		Kind:    failureKind(cause),
	}
	dctx, cancel := ctxutil.Detached(ctx)
	defer cancel()

	if _, err := s.store.CompleteSyncBatch(dctx, b.BatchID, models.SyncFailed, failure, s.now().UTC()); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.log.Error("mark sync batch failed", zap.String("batch_id", b.BatchID), zap.Error(err))
	}
	metrics.ObserveSyncBatch(models.SyncFailed)
	s.log.Warn("sync batch failed",
		zap.String("batch_id", b.BatchID),
		zap.Int("index", idx),
		zap.String("local_id", r.LocalID),
		zap.String("kind", string(failure.Kind)),
		zap.Error(cause),
	)
	return &apperr.BatchReplayError{BatchID: b.BatchID, Index: idx, LocalID: r.LocalID, Err: cause}
}

func failureKind(err error) models.BatchFailureKind {
	switch {
	case apperr.IsValidation(err):
		return models.FailureValidation
	case apperr.IsConflict(err):
		return models.FailureConflict
	case apperr.IsNotFound(err):
		return models.FailureNotFound
	}
	return models.FailurePersistence
}
