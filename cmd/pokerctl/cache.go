package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// tableCache persists the last successful /api/tables response to a local
// sqlite file, so `pokerctl tables --offline` (or any call the gateway
// can't reach) still has something to print.
type tableCache struct {
	path string
}

func newTableCache() (*tableCache, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, "pokerctl")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &tableCache{path: filepath.Join(dir, "tables.db")}, nil
}

func (c *tableCache) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", c.path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS table_listing (
			id         INTEGER PRIMARY KEY CHECK (id = 0),
			payload    TEXT NOT NULL,
			fetched_at TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Store saves tables as the new cached listing, replacing whatever was
// there before.
func (c *tableCache) Store(tables []map[string]interface{}) error {
	payload, err := json.Marshal(tables)
	if err != nil {
		return err
	}
	db, err := c.open()
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(`
		INSERT INTO table_listing (id, payload, fetched_at) VALUES (0, ?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		string(payload), time.Now().Format(time.RFC3339))
	return err
}

// Load returns the last cached listing and when it was fetched.
func (c *tableCache) Load() ([]map[string]interface{}, time.Time, error) {
	db, err := c.open()
	if err != nil {
		return nil, time.Time{}, err
	}
	defer db.Close()

	var payload, fetchedAt string
	err = db.QueryRow(`SELECT payload, fetched_at FROM table_listing WHERE id = 0`).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, fmt.Errorf("pokerctl: no cached table listing available")
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	var tables []map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &tables); err != nil {
		return nil, time.Time{}, err
	}
	fetched, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		fetched = time.Time{}
	}
	return tables, fetched, nil
}
