// Package selection persists per-variable selection flags and mirrors them
// into the Tag Manager page's own row checkboxes.
package selection

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gtmvars/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Store keeps name → selected in SQLite. Names are the only key, so
// variables sharing a name share a flag.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// OpenStore opens or creates the selection database. driver is "sqlite3"
// (cgo) or "sqlite" (pure Go); path may be ":memory:".
func OpenStore(driver, path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenStore")
	defer timer.Stop()

	if driver == "" {
		driver = "sqlite3"
	}
	logging.Store("Opening selection store at %s (driver=%s)", path, driver)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			logging.StoreError("Failed to create directory for %s: %v", path, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases alive across statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS selection_flags (
		name TEXT PRIMARY KEY,
		selected INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Load returns the flag for name and whether one was stored.
func (s *Store) Load(name string) (selected, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v int
	err = s.db.QueryRow(`SELECT selected FROM selection_flags WHERE name = ?`, name).Scan(&v)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("load flag %q: %w", name, err)
	}
	return v != 0, true, nil
}

// Set stores the flag for name.
func (s *Store) Set(name string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := 0
	if selected {
		v = 1
	}
	_, err := s.db.Exec(`
	INSERT INTO selection_flags (name, selected, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET selected = excluded.selected, updated_at = excluded.updated_at`,
		name, v, time.Now().UTC())
	if err != nil {
		logging.StoreError("Failed to store flag %q: %v", name, err)
		return fmt.Errorf("store flag %q: %w", name, err)
	}
	logging.StoreDebug("Stored flag %q=%v", name, selected)
	return nil
}

// Delete removes the flags for names.
func (s *Store) Delete(names ...string) error {
	if len(names) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	for _, n := range names {
		if _, err := tx.Exec(`DELETE FROM selection_flags WHERE name = ?`, n); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete flag %q: %w", n, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	logging.StoreDebug("Deleted %d flags", len(names))
	return nil
}

// All returns every stored flag, including false ones.
func (s *Store) All() (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name, selected FROM selection_flags`)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var name string
		var v int
		if err := rows.Scan(&name, &v); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		out[name] = v != 0
	}
	return out, rows.Err()
}

// Selected returns the names whose flag is set.
func (s *Store) Selected() ([]string, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	var names []string
	for n, on := range all {
		if on {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}
