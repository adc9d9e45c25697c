// Package snapshot persists a slice of client state across runs: the
// session and patient collections and the last device panel settings.
// Measurement series are deliberately not persisted; history re-syncs
// from the backend on the next run.
package snapshot

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mkurniadi/biliwatch/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed snapshot store (modernc.org/sqlite, pure Go).
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the snapshot database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer; a single connection
	// serializes access through Go's pool and avoids "database is
	// locked" errors when a tick-driven save overlaps a manual command.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot is the persisted slice of client state.
type Snapshot struct {
	Sessions []*models.Session
	Patients []*models.Patient
	Panel    models.DevicePanel
	SavedAt  time.Time
}

// Save replaces the stored snapshot wholesale in one transaction.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	for _, sess := range snap.Sessions {
		var endedAt any
		if sess.EndedAt != nil {
			endedAt = sess.EndedAt.UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, patient_id, tsb, duration_minutes, mode, status, created_at, ended_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.PatientID, sess.TSB, sess.Duration, string(sess.Mode),
			string(sess.Status), sess.CreatedAt.UTC(), endedAt,
		)
		if err != nil {
			return fmt.Errorf("save session %s: %w", sess.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM patients"); err != nil {
		return fmt.Errorf("clear patients: %w", err)
	}
	for _, p := range snap.Patients {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO patients (id, name, date_of_birth, weight, gestational_age, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.DateOfBirth, p.Weight, p.GestationalAge,
			p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("save patient %s: %w", p.ID, err)
		}
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO device_panel (id, mode, fan, saved_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET mode = excluded.mode, fan = excluded.fan, saved_at = excluded.saved_at`,
		string(snap.Panel.Mode), boolToInt(snap.Panel.Fan), now,
	)
	if err != nil {
		return fmt.Errorf("save device panel: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// SavePanel updates only the remembered control-panel row, leaving
// sessions and patients untouched.
func (s *Store) SavePanel(ctx context.Context, panel models.DevicePanel) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_panel (id, mode, fan, saved_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET mode = excluded.mode, fan = excluded.fan, saved_at = excluded.saved_at`,
		string(panel.Mode), boolToInt(panel.Fan), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save device panel: %w", err)
	}
	return nil
}

// Load restores the stored snapshot. An empty database yields an empty
// snapshot with the panel defaulted to lights-off, not an error.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Panel: models.DevicePanel{Mode: models.LightModeOff},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, tsb, duration_minutes, mode, status, created_at, ended_at
		FROM sessions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		sess := &models.Session{}
		var mode, status string
		var endedAt sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.PatientID, &sess.TSB, &sess.Duration,
			&mode, &status, &sess.CreatedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Mode = models.LightMode(mode)
		sess.Status = models.SessionStatus(status)
		if endedAt.Valid {
			t := endedAt.Time
			sess.EndedAt = &t
		}
		snap.Sessions = append(snap.Sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	prows, err := s.db.QueryContext(ctx,
		`SELECT id, name, date_of_birth, weight, gestational_age, created_at, updated_at
		FROM patients ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		p := &models.Patient{}
		var createdAt, updatedAt sql.NullTime
		if err := prows.Scan(&p.ID, &p.Name, &p.DateOfBirth, &p.Weight,
			&p.GestationalAge, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		p.CreatedAt = createdAt.Time
		p.UpdatedAt = updatedAt.Time
		snap.Patients = append(snap.Patients, p)
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	var mode string
	var fan int
	var savedAt sql.NullTime
	err = s.db.QueryRowContext(ctx,
		"SELECT mode, fan, saved_at FROM device_panel WHERE id = 1").Scan(&mode, &fan, &savedAt)
	switch {
	case err == sql.ErrNoRows:
		// first run, defaults stand
	case err != nil:
		return nil, fmt.Errorf("load device panel: %w", err)
	default:
		snap.Panel = models.DevicePanel{Mode: models.LightMode(mode), Fan: fan == 1}
		snap.SavedAt = savedAt.Time
	}

	return snap, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
