package registry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// JournalFile is the journal's name inside the storage root. The leading
// dot keeps the orphan sweep away from it.
const JournalFile = ".registry.db"

// SQLiteJournal stores entries in a single sqlite table.
type SQLiteJournal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal database at path.
func OpenJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	// WAL is not critical, ignore failures
	_, _ = db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
	`)

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal table: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Put(e Entry) error {
	_, err := j.db.Exec(`INSERT OR REPLACE INTO entries (id, path, created_at) VALUES (?, ?, ?)`,
		e.ID, e.Path, e.CreatedAt.UnixNano())
	return err
}

func (j *SQLiteJournal) Delete(id string) error {
	_, err := j.db.Exec(`DELETE FROM entries WHERE id = ?`, id)
	return err
}

func (j *SQLiteJournal) Load() ([]Entry, error) {
	rows, err := j.db.Query(`SELECT id, path, created_at FROM entries ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.Path, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
