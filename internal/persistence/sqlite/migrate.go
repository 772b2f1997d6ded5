package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Migration is a single schema change read from a numbered .sql file.
type Migration struct {
	Version     string
	Description string
	FileName    string
	SQL         string
}

// Migrator applies pending migrations and records them in schema_migrations.
type Migrator struct {
	db     *sql.DB
	files  fs.FS
	logger *slog.Logger
}

// NewMigrator builds a Migrator over the embedded migration files.
func NewMigrator(db *sql.DB, logger *slog.Logger) *Migrator {
	files, _ := fs.Sub(embeddedMigrations, "migrations")
	return NewMigratorFS(db, files, logger)
}

// NewMigratorFS builds a Migrator reading migrations from files.
func NewMigratorFS(db *sql.DB, files fs.FS, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, files: files, logger: logger.With("component", "sqlite_migrator")}
}

// ScanMigrations lists the migrations found in files ordered by version.
func ScanMigrations(files fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("sqlite: read migrations: %w", err)
	}

	var migrations []Migration
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationFilePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		if other, ok := seen[matches[1]]; ok {
			return nil, fmt.Errorf("sqlite: migration version %s used by %s and %s", matches[1], other, entry.Name())
		}
		seen[matches[1]] = entry.Name()

		content, err := fs.ReadFile(files, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("sqlite: read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version:     matches[1],
			Description: strings.ReplaceAll(matches[2], "_", " "),
			FileName:    entry.Name(),
			SQL:         string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Run applies every migration not yet recorded, each in its own transaction.
func (m *Migrator) Run(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			execution_time_ms INTEGER
		)`); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations: %w", err)
	}

	migrations, err := ScanMigrations(m.files)
	if err != nil {
		return err
	}

	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return err
	}
	done := make(map[string]struct{}, len(applied))
	for _, version := range applied {
		done[version] = struct{}{}
	}

	pending := 0
	for _, migration := range migrations {
		if _, ok := done[migration.Version]; ok {
			continue
		}
		pending++

		start := time.Now()
		if err := m.apply(ctx, migration, start); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FileName,
				"error", err,
			)
			return err
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	if pending == 0 {
		m.logger.DebugContext(ctx, "schema up to date", "migrations", len(migrations))
	}
	return nil
}

// AppliedVersions returns the recorded migration versions in order.
func (m *Migrator) AppliedVersions(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("sqlite: scan applied migration: %w", err)
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, migration Migration, start time.Time) (err error) {
	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return fmt.Errorf("sqlite: migration %s has no statements", migration.FileName)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin migration %s: %w", migration.Version, err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	for i, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migration %s statement %d: %w", migration.Version, i+1, err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at, execution_time_ms) VALUES (?, ?, ?)`,
		migration.Version, formatTime(time.Now()), time.Since(start).Milliseconds(),
	); err != nil {
		return fmt.Errorf("sqlite: record migration %s: %w", migration.Version, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit migration %s: %w", migration.Version, err)
	}
	return nil
}

// splitStatements drops comment lines and splits on semicolons.
func splitStatements(content string) []string {
	var b strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var statements []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
