package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rentwatch/models"
)

// SQLiteStore keeps local operational data: the stored watch queries the
// daemon iterates, and the per-session run log.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS watch_queries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		enabled BOOLEAN DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		last_run_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS crawl_logs (
		id INTEGER PRIMARY KEY,
		session_id TEXT,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		query_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_logs_session ON crawl_logs(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) AddWatchQuery(q *models.WatchQuery) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO watch_queries (id, name, url, enabled, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		q.ID, q.Name, q.URL, q.Enabled, q.CreatedAt)
	return err
}

func (s *SQLiteStore) EnabledWatchQueries() ([]models.WatchQuery, error) {
	rows, err := s.db.Query(`
		SELECT id, name, url, enabled, created_at, last_run_at
		FROM watch_queries WHERE enabled ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query watch queries: %w", err)
	}
	defer rows.Close()

	var queries []models.WatchQuery
	for rows.Next() {
		var q models.WatchQuery
		if err := rows.Scan(&q.ID, &q.Name, &q.URL, &q.Enabled, &q.CreatedAt, &q.LastRunAt); err != nil {
			return nil, fmt.Errorf("scan watch query: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

func (s *SQLiteStore) TouchWatchQuery(id string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE watch_queries SET last_run_at = ? WHERE id = ?`, at, id)
	return err
}

func (s *SQLiteStore) SetWatchQueryEnabled(id string, enabled bool) error {
	_, err := s.db.Exec(`UPDATE watch_queries SET enabled = ? WHERE id = ?`, enabled, id)
	return err
}

// Log writes one run-log line. Errors are swallowed: logging must never take
// down a crawl.
func (s *SQLiteStore) Log(sessionID *string, level models.LogLevel, message, queryID string) {
	s.db.Exec(`
		INSERT INTO crawl_logs (session_id, timestamp, level, message, query_id)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, time.Now(), level, message, queryID)
}

func (s *SQLiteStore) RecentLogs(limit int) ([]models.CrawlLog, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, timestamp, level, message, query_id
		FROM crawl_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var logs []models.CrawlLog
	for rows.Next() {
		var l models.CrawlLog
		if err := rows.Scan(&l.ID, &l.SessionID, &l.Timestamp, &l.Level, &l.Message, &l.QueryID); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
