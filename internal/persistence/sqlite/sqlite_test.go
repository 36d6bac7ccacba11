// SPDX-License-Identifier: MIT

package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesWAL(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode;").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestVerifyIntegrityHealthy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	problems, err := VerifyIntegrity(path, FullCheck)
	require.NoError(t, err)
	assert.Nil(t, problems)
}

func TestOpenVerifiedQuarantinesGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a database file at all, not even close"), 0o600))

	db, quarantined, err := OpenVerified(path, DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	assert.NotEmpty(t, quarantined)
	assert.FileExists(t, quarantined)
	assert.NoError(t, db.Ping())
}

func TestOpenVerifiedFreshPath(t *testing.T) {
	db, quarantined, err := OpenVerified(filepath.Join(t.TempDir(), "new.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()
	assert.Empty(t, quarantined)
}

func TestDSNCarriesPragmas(t *testing.T) {
	assert.Equal(t, "file:/tmp/x.db", dsn("/tmp/x.db", nil))
	assert.Equal(t,
		"file:/tmp/x.db?mode=ro&_pragma=busy_timeout(2000)",
		dsn("/tmp/x.db", []string{"mode=ro"}, "busy_timeout(2000)"))
}
