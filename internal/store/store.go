// Package store keeps simulation metrics and video summaries in SQLite so
// runs can be compared and re-plotted later.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/signal.report/internal/monitoring"
	"github.com/banshee-data/signal.report/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run kinds.
const (
	KindSimulation = "simulation"
	KindVideo      = "video"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Store is a SQLite results database.
type Store struct {
	*sql.DB

	// Clock stamps new runs.
	Clock timeutil.Clock
}

// Run describes one stored result set.
type Run struct {
	ID        string
	Kind      string
	Source    string
	CreatedAt time.Time
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps :memory:
	// databases shared across statements.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	s := &Store{DB: db, Clock: timeutil.RealClock{}}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateUp applies every pending migration. The migrate instance is not
// closed because that would close the shared connection.
func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// migrateLogger routes migration progress through the monitoring logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// insertRun creates a run row inside tx and returns its id.
func (s *Store) insertRun(tx *sql.Tx, kind, source string, interval *float64) (string, error) {
	id := uuid.New().String()
	_, err := tx.Exec(
		`INSERT INTO runs (run_id, kind, source, interval_seconds, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, kind, source, interval, s.Clock.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.Query(`SELECT run_id, kind, source, created_at FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.ID, &r.Kind, &r.Source, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(0, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// run loads a single run row and checks its kind.
func (s *Store) run(id, kind string) (Run, *float64, error) {
	var r Run
	var created int64
	var interval sql.NullFloat64
	err := s.QueryRow(
		`SELECT run_id, kind, source, created_at, interval_seconds FROM runs WHERE run_id = ?`, id,
	).Scan(&r.ID, &r.Kind, &r.Source, &created, &interval)
	if errors.Is(err, sql.ErrNoRows) {
		return r, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return r, nil, err
	}
	if r.Kind != kind {
		return r, nil, fmt.Errorf("run %s is a %s run, not %s", id, r.Kind, kind)
	}
	r.CreatedAt = time.Unix(0, created)
	if interval.Valid {
		return r, &interval.Float64, nil
	}
	return r, nil, nil
}

// DeleteRun removes a run and all of its rows.
func (s *Store) DeleteRun(id string) error {
	res, err := s.Exec(`DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
