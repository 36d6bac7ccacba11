// SPDX-License-Identifier: MIT

package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

// CheckMode selects the integrity pragma.
type CheckMode string

const (
	QuickCheck CheckMode = "quick"
	FullCheck  CheckMode = "full"
)

func (m CheckMode) pragma() string {
	if m == FullCheck {
		return "PRAGMA integrity_check"
	}
	return "PRAGMA quick_check"
}

// VerifyIntegrity opens path read-only and runs the pragma for mode. A
// healthy database yields no problems; a corrupt one yields SQLite's
// diagnostic lines.
func VerifyIntegrity(path string, mode CheckMode) ([]string, error) {
	db, err := sql.Open("sqlite", dsn(path, []string{"mode=ro"}, "busy_timeout(2000)"))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s read-only: %w", path, err)
	}
	defer db.Close()

	rows, err := db.Query(mode.pragma())
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", mode.pragma(), err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("sqlite: scan check row: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(lines) == 0:
		return []string{"integrity check returned nothing"}, nil
	case len(lines) == 1 && strings.EqualFold(lines[0], "ok"):
		return nil, nil
	default:
		return lines, nil
	}
}

// OpenVerified opens path after a quick check. A database that fails the
// check is renamed to <path>.corrupt-<unix>, its WAL and SHM files are
// dropped, and an empty one takes its place. Losing the ledger only
// loses bookkeeping for disposable media.
func OpenVerified(path string, cfg Config) (db *sql.DB, quarantined string, err error) {
	if _, err := os.Stat(path); err == nil {
		if problems, verr := VerifyIntegrity(path, QuickCheck); verr != nil || len(problems) > 0 {
			if quarantined, err = quarantine(path); err != nil {
				return nil, "", err
			}
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("sqlite: stat %s: %w", path, err)
	}
	db, err = Open(path, cfg)
	return db, quarantined, err
}

func quarantine(path string) (string, error) {
	dest := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("sqlite: quarantine %s: %w", path, err)
	}
	for _, side := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + side)
	}
	return dest, nil
}
