// Package savegame keeps a catalog of save files on disk. Each save is a
// file written by vm.SaveState; the catalog database indexes them by id.
package savegame

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/sciv/vm"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

// ErrSaveNotFound indicates the requested save doesn't exist.
var ErrSaveNotFound = errors.New("save not found")

var log = commonlog.GetLogger("sciv.savegame")

// Entry describes one catalogued save.
type Entry struct {
	ID               string
	Name             string
	Path             string
	Created          time.Time
	ScriptVersion    string
	ClassFingerprint uint64
	Coredump         bool
}

// Catalog is a SQLite index over a directory of save files.
type Catalog struct {
	db  *sql.DB
	dir string
	mu  sync.Mutex
}

// Open opens (creating if needed) the catalog database at dbPath. Save files
// are written into dir.
func Open(dbPath, dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating save dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating catalog dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		created INTEGER NOT NULL,
		script_version TEXT NOT NULL,
		class_fingerprint TEXT NOT NULL,
		coredump INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Catalog{db: db, dir: dir}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Dir returns the directory save files are written to.
func (c *Catalog) Dir() string { return c.dir }

// GameSaveState writes the state of e to a new save file and records it.
func (c *Catalog) GameSaveState(e *vm.EngineState, name string, coredump bool) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	path := filepath.Join(c.dir, id+".sav")
	f, err := os.Create(path)
	if err != nil {
		return Entry{}, fmt.Errorf("creating save file: %w", err)
	}
	if err := e.SaveState(f, name, coredump); err != nil {
		f.Close()
		os.Remove(path)
		return Entry{}, fmt.Errorf("writing save %q: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return Entry{}, fmt.Errorf("closing save file: %w", err)
	}

	entry := Entry{
		ID:               id,
		Name:             name,
		Path:             path,
		Created:          time.Now().Truncate(time.Second),
		ScriptVersion:    e.Config.Version.String(),
		ClassFingerprint: e.Classes.Fingerprint(),
		Coredump:         coredump,
	}
	_, err = c.db.Exec(
		`INSERT INTO saves (id, name, path, created, script_version, class_fingerprint, coredump)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Name, entry.Path, entry.Created.Unix(),
		entry.ScriptVersion, fmt.Sprintf("%016x", entry.ClassFingerprint), entry.Coredump,
	)
	if err != nil {
		os.Remove(path)
		return Entry{}, fmt.Errorf("recording save: %w", err)
	}
	log.Infof("saved %q as %s", name, id)
	return entry, nil
}

// Get returns the catalog entry for id.
func (c *Catalog) Get(id string) (Entry, error) {
	row := c.db.QueryRow(
		`SELECT id, name, path, created, script_version, class_fingerprint, coredump
		 FROM saves WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%s: %w", id, ErrSaveNotFound)
	}
	return entry, err
}

// List returns all entries, newest first.
func (c *Catalog) List() ([]Entry, error) {
	rows, err := c.db.Query(
		`SELECT id, name, path, created, script_version, class_fingerprint, coredump
		 FROM saves ORDER BY created DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("querying saves: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		entry   Entry
		created int64
		fp      string
	)
	if err := s.Scan(&entry.ID, &entry.Name, &entry.Path, &created, &entry.ScriptVersion, &fp, &entry.Coredump); err != nil {
		return Entry{}, err
	}
	entry.Created = time.Unix(created, 0)
	if _, err := fmt.Sscanf(fp, "%x", &entry.ClassFingerprint); err != nil {
		return Entry{}, fmt.Errorf("save %s: bad fingerprint %q", entry.ID, fp)
	}
	return entry, nil
}

// GameRestoreState restores the save id into a new engine state sharing the
// configuration and bindings of current.
func (c *Catalog) GameRestoreState(id string, current *vm.EngineState) (*vm.EngineState, error) {
	entry, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("opening save %s: %w", id, err)
	}
	defer f.Close()

	e, err := vm.RestoreState(f, current)
	if err != nil {
		log.Warningf("restore of %s failed: %s", id, err)
		return nil, err
	}
	return e, nil
}

// TestSavegame reports whether save id exists and can be restored into the
// running game. Only the save header is read.
func (c *Catalog) TestSavegame(id string, current *vm.EngineState) bool {
	entry, err := c.Get(id)
	if err != nil {
		return false
	}
	f, err := os.Open(entry.Path)
	if err != nil {
		return false
	}
	defer f.Close()

	hdr, err := vm.ProbeSave(f)
	if err != nil {
		return false
	}
	return current.CheckCompatible(hdr) == nil
}

// Delete removes the save id and its file.
func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.Get(id)
	if err != nil {
		return err
	}
	if _, err := c.db.Exec(`DELETE FROM saves WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting save: %w", err)
	}
	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing save file: %w", err)
	}
	return nil
}
