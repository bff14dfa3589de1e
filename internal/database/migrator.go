package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/kdimtricp/humetube/migrations"
)

const migrationsTable = "schema_migrations"

type Migration struct {
	Version string
	Name    string
	SQL     string
}

type MigrationStatus struct {
	Migration
	Applied bool
}

// Migrator applies the NNN_name.sql files of source to a Postgres database,
// recording each applied version in schema_migrations.
type Migrator struct {
	db     *sql.DB
	source fs.FS
}

func NewMigrator(db *sql.DB, source fs.FS) *Migrator {
	return &Migrator{db: db, source: source}
}

// MigrationSource returns the directory at path, or the schema embedded in
// the binary when path is empty.
func MigrationSource(path string) fs.FS {
	if path == "" {
		return migrations.FS
	}
	return os.DirFS(path)
}

// LoadMigrations reads the migrations at the root of fsys in version order.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	seen := make(map[string]string)
	var loaded []Migration
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		version, _, ok := strings.Cut(file.Name(), "_")
		if !ok || version == "" {
			log.Printf("[DB] Skipping invalid migration filename: %s", file.Name())
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %s", other, file.Name(), version)
		}
		seen[version] = file.Name()

		content, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}
		loaded = append(loaded, Migration{Version: version, Name: file.Name(), SQL: string(content)})
	}

	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].Version < loaded[j].Version
	})
	return loaded, nil
}

// Status lists every known migration and whether it was applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	all, err := LoadMigrations(m.source)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(all))
	for _, mig := range all {
		statuses = append(statuses, MigrationStatus{Migration: mig, Applied: applied[mig.Version]})
	}
	return statuses, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, s := range statuses {
		if s.Applied {
			continue
		}
		if err := m.apply(ctx, s.Migration); err != nil {
			return count, err
		}
		count++
	}

	if count == 0 {
		log.Println("[DB] Schema is up to date")
	} else {
		log.Printf("[DB] Applied %d migration(s)", count)
	}
	return count, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + migrationsTable + ` (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", migrationsTable, err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM `+migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", migrationsTable, err)
	}
	defer rows.Close()

	versions := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		versions[v] = true
	}
	return versions, rows.Err()
}

// apply runs one migration and records it in the same transaction.
func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return fmt.Errorf("migration %s failed: %w", mig.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+migrationsTable+` (version) VALUES ($1)`, mig.Version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", mig.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", mig.Name, err)
	}

	log.Printf("[DB] Applied migration %s", mig.Name)
	return nil
}
