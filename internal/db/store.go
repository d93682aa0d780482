// Package db is the Postgres attendance.Store. Every record write and its
// audit entry share one transaction.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/ctxutil"
	"github.com/Spok95/campus-attendance/internal/metrics"
)

type Store struct {
	db *sql.DB
}

var _ attendance.Store = (*Store)(nil)

func New(database *sql.DB) *Store { return &Store{db: database} }

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	start := time.Now()
	err := s.db.PingContext(ctx)
	metrics.ObserveDBPing(time.Since(start))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

// jsonArg passes raw JSON for a $n::jsonb parameter; empty becomes NULL.
func jsonArg(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func jsonValue(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
