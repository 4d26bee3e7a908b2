// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stats provides a SQLite-backed usage log for relayed requests.
package stats

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// SCHEMA
// =============================================================================

// Schema is the SQLite schema for the request log.
const Schema = `
-- Requests table: one row per relayed request, however it ended
CREATE TABLE IF NOT EXISTS requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts INTEGER NOT NULL,            -- Unix milliseconds
    kind TEXT NOT NULL,             -- chat, stream, models
    model TEXT,
    status TEXT NOT NULL,           -- ok, error
    duration_ms INTEGER NOT NULL,
    chunks INTEGER NOT NULL,
    bytes INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requests_ts ON requests(ts);
CREATE INDEX IF NOT EXISTS idx_requests_kind ON requests(kind);
`

// =============================================================================
// TYPES
// =============================================================================

// RequestKind labels what kind of relayed call a row records.
type RequestKind string

const (
	KindChat   RequestKind = "chat"
	KindStream RequestKind = "stream"
	KindModels RequestKind = "models"
)

// Request outcomes.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// RequestStat is one recorded relayed request.
type RequestStat struct {
	Time     time.Time
	Kind     RequestKind
	Model    string
	Status   string
	Duration time.Duration
	Chunks   int
	Bytes    int
}

// Summary aggregates the request log.
type Summary struct {
	TotalRequests int                 `json:"total_requests"`
	ByKind        map[RequestKind]int `json:"by_kind"`
	Errors        int                 `json:"errors"`
	TotalChunks   int64               `json:"total_chunks"`
	TotalBytes    int64               `json:"total_bytes"`
	AvgDurationMS float64             `json:"avg_duration_ms"`
}

// =============================================================================
// STORE
// =============================================================================

// Store is the usage log. It is safe for concurrent use; SQLite's single
// writer is enforced through the connection pool.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the usage database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create stats directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record appends one request to the log. A zero Time is filled with now.
func (s *Store) Record(stat RequestStat) error {
	if stat.Time.IsZero() {
		stat.Time = time.Now()
	}
	if stat.Status == "" {
		stat.Status = StatusOK
	}

	_, err := s.db.Exec(
		`INSERT INTO requests (ts, kind, model, status, duration_ms, chunks, bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stat.Time.UnixMilli(),
		string(stat.Kind),
		stat.Model,
		stat.Status,
		stat.Duration.Milliseconds(),
		stat.Chunks,
		stat.Bytes,
	)
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	return nil
}

// Summary returns aggregate counts over the whole log.
func (s *Store) Summary() (*Summary, error) {
	sum := &Summary{ByKind: make(map[RequestKind]int)}

	row := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(chunks), 0),
		        COALESCE(SUM(bytes), 0),
		        COALESCE(AVG(duration_ms), 0)
		 FROM requests`,
	)
	if err := row.Scan(&sum.TotalRequests, &sum.TotalChunks, &sum.TotalBytes, &sum.AvgDurationMS); err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	row = s.db.QueryRow(`SELECT COUNT(*) FROM requests WHERE status != ?`, StatusOK)
	if err := row.Scan(&sum.Errors); err != nil {
		return nil, fmt.Errorf("failed to count errors: %w", err)
	}

	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM requests GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to group by kind: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan kind row: %w", err)
		}
		sum.ByKind[RequestKind(kind)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kind rows: %w", err)
	}

	return sum, nil
}

// Recent returns the n most recent requests, newest first.
func (s *Store) Recent(n int) ([]RequestStat, error) {
	rows, err := s.db.Query(
		`SELECT ts, kind, model, status, duration_ms, chunks, bytes
		 FROM requests
		 ORDER BY ts DESC, id DESC
		 LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent requests: %w", err)
	}
	defer rows.Close()

	var out []RequestStat
	for rows.Next() {
		var (
			ts         int64
			kind       string
			durationMS int64
			stat       RequestStat
		)
		if err := rows.Scan(&ts, &kind, &stat.Model, &stat.Status, &durationMS, &stat.Chunks, &stat.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan request row: %w", err)
		}
		stat.Time = time.UnixMilli(ts)
		stat.Kind = RequestKind(kind)
		stat.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate request rows: %w", err)
	}

	return out, nil
}

// Reset deletes every logged request.
func (s *Store) Reset() error {
	if _, err := s.db.Exec(`DELETE FROM requests`); err != nil {
		return fmt.Errorf("failed to reset stats: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
