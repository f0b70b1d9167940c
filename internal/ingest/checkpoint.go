package ingest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Checkpoint records which batches of an ingestion run were committed to
// the index, so an interrupted run resumes at the first uncommitted batch
// instead of starting over.
type Checkpoint struct {
	db *sql.DB
}

// OpenCheckpoint opens (and if needed creates) the checkpoint database.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	const schema = `
	CREATE TABLE IF NOT EXISTS committed_batches (
		run_id       TEXT    NOT NULL,
		batch_index  INTEGER NOT NULL,
		committed_at INTEGER NOT NULL,
		PRIMARY KEY (run_id, batch_index)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoint schema: %w", err)
	}
	return &Checkpoint{db: db}, nil
}

// Committed reports whether the batch was already written to the index in
// an earlier run.
func (c *Checkpoint) Committed(runID string, batch int) (bool, error) {
	var n int
	err := c.db.QueryRow(
		"SELECT COUNT(*) FROM committed_batches WHERE run_id = ? AND batch_index = ?",
		runID, batch,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query checkpoint: %w", err)
	}
	return n > 0, nil
}

// Commit marks the batch as written.
func (c *Checkpoint) Commit(runID string, batch int) error {
	_, err := c.db.Exec(
		"INSERT OR IGNORE INTO committed_batches (run_id, batch_index, committed_at) VALUES (?, ?, ?)",
		runID, batch, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// Clear removes all checkpoints for a completed run.
func (c *Checkpoint) Clear(runID string) error {
	if _, err := c.db.Exec("DELETE FROM committed_batches WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// Close closes the checkpoint database.
func (c *Checkpoint) Close() error {
	return c.db.Close()
}
