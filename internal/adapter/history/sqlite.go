package history

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"tunedrop/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS delivered (
    seq      INTEGER PRIMARY KEY AUTOINCREMENT,
    kind     TEXT NOT NULL,
    id       TEXT NOT NULL,
    added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(kind, id)
);
CREATE INDEX IF NOT EXISTS idx_delivered_kind ON delivered(kind);
`

// SQLiteStore persists delivered ids in a SQLite database, mirroring them
// in memory. Database trouble degrades the store to memory-only for the
// rest of the run; it never aborts the pipeline.
type SQLiteStore struct {
	db         *sql.DB // nil when persistence is unavailable
	maxEntries int

	mu    sync.Mutex
	parts *partitions
}

// NewSQLite opens (or creates) the database at dbPath and loads all
// delivered ids. Open or schema failures are logged and leave the store
// memory-only.
func NewSQLite(dbPath string, maxEntries int) *SQLiteStore {
	s := &SQLiteStore{maxEntries: maxEntries, parts: newPartitions()}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Printf("warning: cannot create history dir for %s: %v, history is memory-only", dbPath, err)
		return s
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Printf("warning: cannot open history db %s: %v, history is memory-only", dbPath, err)
		return s
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		log.Printf("warning: cannot initialize history db %s: %v, history is memory-only", dbPath, err)
		return s
	}
	s.db = db
	s.loadAll()
	return s
}

func (s *SQLiteStore) loadAll() {
	rows, err := s.db.Query(`SELECT kind, id FROM delivered ORDER BY seq ASC`)
	if err != nil {
		log.Printf("warning: cannot read history db: %v, starting empty", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			log.Printf("warning: cannot scan history row: %v", err)
			return
		}
		s.parts.add(domain.SourceKind(kind), id)
	}
	if err := rows.Err(); err != nil {
		log.Printf("warning: history db read incomplete: %v", err)
	}
}

// Contains reports whether id was already delivered for kind.
func (s *SQLiteStore) Contains(kind domain.SourceKind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parts.contains(kind, id)
}

// Record appends id to the kind's partition and writes it through
// immediately. Duplicate records are no-ops (INSERT OR IGNORE).
func (s *SQLiteStore) Record(kind domain.SourceKind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.parts.add(kind, id) {
		return
	}
	s.parts.trim(kind, s.maxEntries)
	if s.db == nil {
		return
	}
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO delivered (kind, id) VALUES (?, ?)`, string(kind), id); err != nil {
		log.Printf("warning: cannot record %s/%s: %v", kind, id, err)
	}
	if s.maxEntries > 0 {
		_, err := s.db.Exec(
			`DELETE FROM delivered WHERE kind = ? AND seq NOT IN
			   (SELECT seq FROM delivered WHERE kind = ? ORDER BY seq DESC LIMIT ?)`,
			string(kind), string(kind), s.maxEntries,
		)
		if err != nil {
			log.Printf("warning: cannot trim history for %s: %v", kind, err)
		}
	}
}

// Flush is a no-op: records are written through as they arrive.
func (s *SQLiteStore) Flush() error {
	return nil
}

// Sizes returns the number of delivered ids per kind.
func (s *SQLiteStore) Sizes() map[domain.SourceKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parts.sizes()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
