// SPDX-License-Identifier: MIT

// Package sqlite opens the embedded SQLite database used for the temp media
// ledger.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Config tunes the connection pool.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig suits the ledger: a single writer and a handful of readers.
func DefaultConfig() Config {
	return Config{BusyTimeout: 5 * time.Second, MaxOpenConns: 4}
}

// dsn builds a modernc file DSN. Pragmas ride in the DSN so every pooled
// connection gets them, not just the first.
func dsn(path string, params []string, pragmas ...string) string {
	q := append([]string(nil), params...)
	for _, p := range pragmas {
		q = append(q, "_pragma="+p)
	}
	if len(q) == 0 {
		return "file:" + path
	}
	return "file:" + path + "?" + strings.Join(q, "&")
}

// Open returns a pinged pool in WAL mode.
func Open(path string, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path, nil,
		"journal_mode(WAL)",
		fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()),
		"synchronous(NORMAL)",
		"foreign_keys(ON)",
	))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	conns := max(cfg.MaxOpenConns, 1)
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return db, nil
}
