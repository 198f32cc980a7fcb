package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the database connection and provides access to the campaign
// document store: one JSON blob per (shop, namespace, key), mirroring the
// host platform's shop-metafield storage.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS campaign_documents (
			shop TEXT NOT NULL,
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (shop, namespace, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_shop ON campaign_documents(shop)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// GetDocument returns the raw JSON blob for the given coordinates. A
// missing document is not an error; it returns nil bytes, which downstream
// parsing treats as an empty campaign list.
func (db *DB) GetDocument(shop, namespace, key string) ([]byte, error) {
	var value string
	err := db.conn.QueryRow(
		`SELECT value FROM campaign_documents WHERE shop = ? AND namespace = ? AND key = ?`,
		shop, namespace, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return []byte(value), nil
}

// PutDocument upserts the raw JSON blob for the given coordinates.
func (db *DB) PutDocument(shop, namespace, key string, value []byte) error {
	_, err := db.conn.Exec(
		`INSERT INTO campaign_documents (shop, namespace, key, value, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(shop, namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		shop, namespace, key, string(value), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}
