package registry

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bobmatnyc/dedup-cli/internal/db"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// migrationAdvisoryLock serializes migration runs across processes sharing
// a postgres database.
const migrationAdvisoryLock = 741217

// migrationFiles returns the embedded migration filenames for one dialect
// in lexicographic order, which is the order they apply in.
func migrationFiles(dialect string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations/"+dialect)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: read migrations", dialect)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func readMigration(dialect, name string) (string, error) {
	data, err := migrationFS.ReadFile("migrations/" + dialect + "/" + name)
	if err != nil {
		return "", eris.Wrapf(err, "%s: read migration %s", dialect, name)
	}
	return string(data), nil
}

// Migrate applies pending embedded migrations in filename order, recording
// each in schema_migrations. The single-connection pool serializes
// concurrent callers, so no extra locking is needed.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "registry.migrate"))

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL
	)`); err != nil {
		return eris.Wrap(err, "sqlite: ensure migration table")
	}

	applied, err := sqliteAppliedMigrations(ctx, s.db)
	if err != nil {
		return err
	}
	names, err := migrationFiles("sqlite")
	if err != nil {
		return err
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		stmt, err := readMigration("sqlite", name)
		if err != nil {
			return err
		}
		log.Info("applying migration", zap.String("file", name))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %s", name)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC(),
		); err != nil {
			return eris.Wrapf(err, "sqlite: record migration %s", name)
		}
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}

func sqliteAppliedMigrations(ctx context.Context, dbc *sql.DB) (map[string]bool, error) {
	rows, err := dbc.QueryContext(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query applied migrations")
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan applied migration")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "sqlite: applied migrations iterate")
}

// Migrate applies pending embedded migrations in filename order inside one
// transaction, recording each in schema_migrations. A transaction-scoped
// advisory lock keeps concurrent runs from interleaving and is released on
// commit or rollback, so a failed run cannot leave the lock held.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "registry.migrate"))

	names, err := migrationFiles("postgres")
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin migrate")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock($1)`, int64(migrationAdvisoryLock)); err != nil {
		return eris.Wrap(err, "postgres: acquire migration advisory lock")
	}

	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}

	applied, err := pgxAppliedMigrations(ctx, tx)
	if err != nil {
		return err
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		stmt, err := readMigration("postgres", name)
		if err != nil {
			return err
		}
		log.Info("applying migration", zap.String("file", name))
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", name)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", name)
		}
		log.Info("migration applied", zap.String("file", name))
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit migrate")
}

func pgxAppliedMigrations(ctx context.Context, q db.Pool) (map[string]bool, error) {
	rows, err := q.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied migrations")
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan applied migration")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "postgres: applied migrations iterate")
}
