package store

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore persists entries in a single-file SQLite database.
type SQLiteStore struct {
	db *sql.DB
	// sqlite allows one writer at a time
	writeMutex sync.Mutex
}

// NewSQLiteStore opens (or creates) the database in the given file.
// An empty filename opens a shared in-memory database.
func NewSQLiteStore(filename string) (*SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			request_time INTEGER,
			response_time INTEGER,
			expires INTEGER,
			bytes BLOB
		)`,
		"CREATE INDEX IF NOT EXISTS expires_idx ON entries (expires)",
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) All(prefix string) ([]Entry, error) {
	rows, err := s.db.Query(`SELECT key, request_time, response_time, expires, bytes
		FROM entries WHERE key LIKE ? ESCAPE '\'`, likePattern(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	now := time.Now()
	for rows.Next() {
		var entry Entry
		var req, res, exp int64
		if err := rows.Scan(&entry.Key, &req, &res, &exp, &entry.Bytes); err != nil {
			return entries, err
		}
		entry.RequestTime = time.Unix(req, 0)
		entry.ResponseTime = time.Unix(res, 0)
		if exp != 0 {
			entry.Expires = time.Unix(exp, 0)
		}
		if expired(entry, now) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Put(entry Entry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	var exp int64
	if !entry.Expires.IsZero() {
		exp = entry.Expires.Unix()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO entries
		(key, request_time, response_time, expires, bytes) VALUES (?, ?, ?, ?, ?)`,
		entry.Key, entry.RequestTime.Unix(), entry.ResponseTime.Unix(), exp, entry.Bytes)
	return err
}

func (s *SQLiteStore) Purge(key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM entries WHERE key = ?", key)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// likePattern escapes LIKE metacharacters in the prefix. Cache keys contain
// URIs, which may well include % or _.
func likePattern(prefix string) string {
	escaped := make([]byte, 0, len(prefix)+1)
	for i := 0; i < len(prefix); i++ {
		switch prefix[i] {
		case '%', '_', '\\':
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, prefix[i])
	}
	return string(escaped) + "%"
}
