package stores

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/colonyops/kiln/internal/data/db"
)

var corruptionCodes = []int{
	sqlite3.SQLITE_CORRUPT,
	sqlite3.SQLITE_NOTADB,
	sqlite3.SQLITE_CANTOPEN,
}

var corruptionMessages = []string{
	"database disk image is malformed",
	"file is not a database",
	"database corruption",
}

// IsCorruptionError reports whether err means the database file cannot be
// used as is.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return slices.Contains(corruptionCodes, serr.Code())
	}

	msg := err.Error()
	return slices.ContainsFunc(corruptionMessages, func(m string) bool {
		return strings.Contains(msg, m)
	})
}

// RecoverFromCorruption renames the database in dataDir, and any -wal or -shm
// file next to it, to "<name>.corrupt.<timestamp>" so the next db.Open starts
// empty. It returns the backup path, or "" when there was nothing to move.
func RecoverFromCorruption(dataDir string) (string, error) {
	current := filepath.Join(dataDir, db.FileName)
	backup := fmt.Sprintf("%s.corrupt.%s", current, time.Now().Format("20060102-150405"))

	moved := false
	for _, suffix := range []string{"", "-wal", "-shm"} {
		src := current + suffix
		if _, err := os.Stat(src); err != nil {
			continue
		}

		if err := os.Rename(src, backup+suffix); err != nil {
			if suffix == "" {
				return "", fmt.Errorf("move corrupted database: %w", err)
			}
			// A sidecar that cannot be moved must still not survive next to a
			// fresh database file.
			if rmErr := os.Remove(src); rmErr != nil {
				return "", fmt.Errorf("discard %s: %w", filepath.Base(src), errors.Join(err, rmErr))
			}
			continue
		}
		moved = true
	}

	if !moved {
		return "", nil
	}
	return backup, nil
}
