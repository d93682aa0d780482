package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/models"
)

func cloneBatch(b *models.OfflineSyncBatch) models.OfflineSyncBatch {
	out := *b
	out.Records = append([]models.OfflineRecord(nil), b.Records...)
	if b.Failure != nil {
		f := *b.Failure
		out.Failure = &f
	}
	return out
}

func (s *Store) CreateSyncBatch(ctx context.Context, b models.OfflineSyncBatch) (models.OfflineSyncBatch, error) {
	if err := ctx.Err(); err != nil {
		return models.OfflineSyncBatch{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[b.BatchID]; ok {
		return models.OfflineSyncBatch{}, fmt.Errorf("sync batch %s: %w", b.BatchID, apperr.ErrConflict)
	}
	b.ID = s.nextID()
	stored := cloneBatch(&b)
	s.batches[b.BatchID] = &stored
	return cloneBatch(&stored), nil
}

func (s *Store) GetSyncBatch(ctx context.Context, batchID string) (models.OfflineSyncBatch, error) {
	if err := ctx.Err(); err != nil {
		return models.OfflineSyncBatch{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[batchID]
	if !ok {
		return models.OfflineSyncBatch{}, fmt.Errorf("sync batch %s: %w", batchID, apperr.ErrNotFound)
	}
	return cloneBatch(b), nil
}

func (s *Store) CompleteSyncBatch(ctx context.Context, batchID string, status models.SyncStatus, failure *models.BatchFailure, at time.Time) (models.OfflineSyncBatch, error) {
	if err := ctx.Err(); err != nil {
		return models.OfflineSyncBatch{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok || b.Status != models.SyncPending {
		return models.OfflineSyncBatch{}, fmt.Errorf("pending sync batch %s: %w", batchID, apperr.ErrNotFound)
	}
	b.Status = status
	b.UpdatedAt = at
	if failure != nil {
		f := *failure
		b.Failure = &f
	}
	done := at
	b.CompletedAt = &done
	return cloneBatch(b), nil
}
