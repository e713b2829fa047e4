// internal/store/sqlite.go
//
// SQLite implementation of Store.
// Responsibilities:
//   - Opening the database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//   - A single-row port counter so handed-out ports survive restarts.

package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

/**
 * OpenSQLite opens (and creates if missing) the database at dsn, applies
 * migrations and seeds the port counter with basePort.
 *
 * A basePort above the stored counter moves the counter forward; it never
 * moves backwards.
 */
func OpenSQLite(dsn string, basePort int) (*SQLite, error) {
	db, err := openDB(dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO relay_port_counter(id, next) VALUES (1, ?)`, basePort); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed port counter: %w", err)
	}
	if _, err := db.Exec(`UPDATE relay_port_counter SET next = MAX(next, ?) WHERE id = 1`, basePort); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("raise port counter: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) NextPort(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT next FROM relay_port_counter WHERE id = 1`).Scan(&next); err != nil {
		return 0, fmt.Errorf("read port counter: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE relay_port_counter SET next = ? WHERE id = 1`, next+1); err != nil {
		return 0, fmt.Errorf("bump port counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *SQLite) Save(ctx context.Context, r Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO relay_games (game_id, contract_address, port, created_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(game_id) DO UPDATE SET
            contract_address = excluded.contract_address,
            port             = excluded.port,
            created_at       = excluded.created_at`,
		r.GameID, r.ContractAddress, r.Port, r.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *SQLite) Get(ctx context.Context, gameID string) (*Record, error) {
	var r Record
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT game_id, contract_address, port, created_at FROM relay_games WHERE game_id = ?`, gameID,
	).Scan(&r.GameID, &r.ContractAddress, &r.Port, &created)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &r, nil
}

// openDB ensures the parent directory exists and opens dsn with busy timeout
// and WAL journaling.
func openDB(dsn string) (*sql.DB, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

/**
 * migrate applies the embedded migrations/*.sql files in lexical order.
 *
 * - Uses a _migrations table to track applied files.
 * - Each file runs inside its own transaction.
 */
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	var files []string
	if err := fs.WalkDir(migrations, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("query _migrations: %w", err)
		}

		sqlBytes, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}
