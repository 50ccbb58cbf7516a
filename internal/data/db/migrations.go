package db

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/kiln/internal/core/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one schema version with its forward and reverse SQL.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

type direction string

const (
	directionUp   direction = "up"
	directionDown direction = "down"
)

// migrationFile is the parsed form of "NNNN_name.{up,down}.sql".
type migrationFile struct {
	version int
	name    string
	dir     direction
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_([A-Za-z0-9_]+)\.(up|down)\.sql$`)

func parseFilename(filename string) (migrationFile, error) {
	m := migrationFilePattern.FindStringSubmatch(filename)
	if m == nil {
		return migrationFile{}, errors.New("expected NNNN_name.{up,down}.sql")
	}

	version, err := strconv.Atoi(m[1])
	if err != nil {
		return migrationFile{}, fmt.Errorf("version %q: %w", m[1], err)
	}
	if version == 0 {
		return migrationFile{}, errors.New("version must be positive")
	}

	return migrationFile{version: version, name: m[2], dir: direction(m[3])}, nil
}

// loadMigrations reads the embedded migrations sorted by version. Every
// version must have exactly one up and one down file.
func loadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		file, err := parseFilename(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", entry.Name(), err)
		}

		body, err := fs.ReadFile(migrationsFS, path.Join("migrations", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[file.version]
		if !ok {
			m = &Migration{Version: file.version, Name: file.name}
			byVersion[file.version] = m
		}

		slot := &m.UpSQL
		if file.dir == directionDown {
			slot = &m.DownSQL
		}
		if *slot != "" {
			return nil, fmt.Errorf("migration %04d: duplicate %s file", file.version, file.dir)
		}
		*slot = string(body)
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		switch {
		case m.UpSQL == "":
			return nil, fmt.Errorf("migration %04d: missing up file", m.Version)
		case m.DownSQL == "":
			return nil, fmt.Errorf("migration %04d: missing down file", m.Version)
		}
		out = append(out, *m)
	}

	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// migrator runs migrations against one connection and tracks them in
// schema_migrations.
type migrator struct {
	conn *sql.DB
	log  zerolog.Logger
}

func newMigrator(ctx context.Context, conn *sql.DB) (*migrator, []Migration, map[int]bool, error) {
	all, err := loadMigrations()
	if err != nil {
		return nil, nil, nil, err
	}

	m := &migrator{conn: conn, log: logging.Component("db")}
	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return nil, nil, nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return m, all, applied, nil
}

func (m *migrator) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := m.conn.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	set := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		set[v] = true
	}
	return set, rows.Err()
}

// step runs one direction of a migration and updates the bookkeeping row in
// the same transaction.
func (m *migrator) step(ctx context.Context, mig Migration, dir direction) error {
	m.log.Info().
		Int("version", mig.Version).
		Str("name", mig.Name).
		Str("direction", string(dir)).
		Msg("migrating")

	tx, err := m.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	body, record, args := mig.UpSQL,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
		[]any{mig.Version, mig.Name, time.Now().UnixNano()}
	if dir == directionDown {
		body, record, args = mig.DownSQL,
			"DELETE FROM schema_migrations WHERE version = ?",
			[]any{mig.Version}
	}

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("%s %04d_%s: %w", dir, mig.Version, mig.Name, err)
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("record %04d: %w", mig.Version, err)
	}
	return tx.Commit()
}

// migrateUp applies every migration not yet recorded, oldest first.
func migrateUp(ctx context.Context, conn *sql.DB) error {
	m, all, applied, err := newMigrator(ctx, conn)
	if err != nil {
		return err
	}

	for _, mig := range all {
		if applied[mig.Version] {
			continue
		}
		if err := m.step(ctx, mig, directionUp); err != nil {
			return err
		}
	}
	return nil
}

// MigrateDown reverts the newest n applied migrations.
func MigrateDown(ctx context.Context, conn *sql.DB, n int) error {
	if n <= 0 {
		return fmt.Errorf("n must be positive, got %d", n)
	}

	m, all, applied, err := newMigrator(ctx, conn)
	if err != nil {
		return err
	}

	var revert []Migration
	for _, mig := range slices.Backward(all) {
		if applied[mig.Version] {
			revert = append(revert, mig)
		}
	}
	if n > len(revert) {
		return fmt.Errorf("cannot revert %d migrations, only %d applied", n, len(revert))
	}

	for _, mig := range revert[:n] {
		if err := m.step(ctx, mig, directionDown); err != nil {
			return err
		}
	}
	return nil
}
