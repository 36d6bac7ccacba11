// SPDX-License-Identifier: MIT

package tempmedia

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/metrics"
)

// Ledger records tracked files so a restarted process can delete what a
// crashed one left behind.
type Ledger interface {
	Record(ctx context.Context, f File) error
	Forget(ctx context.Context, path string) error
	List(ctx context.Context) ([]File, error)
	Ping(ctx context.Context) error
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS temp_media (
	path       TEXT PRIMARY KEY,
	video_id   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);`

// SQLLedger is a Ledger backed by a database/sql handle (SQLite).
type SQLLedger struct {
	db *sql.DB
}

// NewSQLLedger ensures the schema exists.
func NewSQLLedger(ctx context.Context, db *sql.DB) (*SQLLedger, error) {
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &SQLLedger{db: db}, nil
}

// Record upserts f.
func (l *SQLLedger) Record(ctx context.Context, f File) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO temp_media (path, video_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET video_id = excluded.video_id, created_at = excluded.created_at`,
		f.Path, f.ID, f.CreatedAt.UnixNano())
	return err
}

// Forget removes path.
func (l *SQLLedger) Forget(ctx context.Context, path string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM temp_media WHERE path = ?`, path)
	return err
}

// List returns every recorded file, oldest first.
func (l *SQLLedger) List(ctx context.Context) ([]File, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT path, video_id, created_at FROM temp_media ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var (
			f  File
			ns int64
		)
		if err := rows.Scan(&f.Path, &f.ID, &ns); err != nil {
			return nil, err
		}
		f.CreatedAt = time.Unix(0, ns)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Ping checks the database is reachable.
func (l *SQLLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// RecoverOrphans deletes files recorded in the ledger that this process does
// not track: leftovers from a crash. It returns how many were removed.
func (m *Manager) RecoverOrphans(ctx context.Context) (int, error) {
	if m.ledger == nil {
		return 0, nil
	}
	entries, err := m.ledger.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("tempmedia: list ledger: %w", err)
	}

	removed := 0
	for _, f := range entries {
		m.mu.Lock()
		_, live := m.files[f.Path]
		m.mu.Unlock()
		if live {
			continue
		}

		err := os.Remove(f.Path)
		switch {
		case err == nil:
			removed++
			metrics.IncTempDeletion("orphan", "deleted")
		case errors.Is(err, os.ErrNotExist):
			metrics.IncTempDeletion("orphan", "missing")
		default:
			metrics.IncTempDeletion("orphan", "error")
			m.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "tempmedia.orphan_delete_failed").
				Str(xglog.FieldPath, f.Path).
				Msg("failed to delete orphaned media")
			continue
		}
		if err := m.ledger.Forget(ctx, f.Path); err != nil {
			return removed, fmt.Errorf("tempmedia: forget orphan: %w", err)
		}
	}

	if removed > 0 {
		m.logger.Info().
			Str(xglog.FieldEvent, "tempmedia.orphans_recovered").
			Int("files", removed).
			Msg("deleted media left behind by a previous run")
	}
	return removed, nil
}

// Ping reports ledger health; a manager without a ledger is always healthy.
func (m *Manager) Ping(ctx context.Context) error {
	if m.ledger == nil {
		return nil
	}
	return m.ledger.Ping(ctx)
}
