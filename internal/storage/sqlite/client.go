package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/glycowatch/backend/internal/storage/models"
	"github.com/glycowatch/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS asset_loads (
		id TEXT PRIMARY KEY,
		host TEXT,
		threshold REAL NOT NULL,
		loaded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_loads_loaded ON asset_loads(loaded_at);

	CREATE TABLE IF NOT EXISTS asset_fingerprints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		load_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		sha256 TEXT NOT NULL,
		size INTEGER NOT NULL,
		FOREIGN KEY (load_id) REFERENCES asset_loads(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_fingerprints_load ON asset_fingerprints(load_id);
	CREATE INDEX IF NOT EXISTS idx_fingerprints_kind ON asset_fingerprints(kind);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) RecordLoad(load *models.AssetLoad) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO asset_loads (id, host, threshold, loaded_at) VALUES (?, ?, ?, ?)`,
		load.ID,
		load.Host,
		load.Threshold,
		load.LoadedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert asset load: %w", err)
	}

	for _, a := range load.Assets {
		_, err = tx.Exec(
			`INSERT INTO asset_fingerprints (load_id, kind, path, sha256, size) VALUES (?, ?, ?, ?, ?)`,
			load.ID,
			a.Kind,
			a.Path,
			a.SHA256,
			a.Size,
		)
		if err != nil {
			return fmt.Errorf("failed to insert asset fingerprint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit asset load: %w", err)
	}

	logger.Info("Asset load recorded",
		zap.String("load_id", load.ID),
		zap.Int("assets", len(load.Assets)),
	)

	return nil
}

// ListLoads returns the most recent loads first, each with its fingerprints.
func (c *Client) ListLoads(limit int) ([]models.AssetLoad, error) {
	query := `
		SELECT id, host, threshold, loaded_at
		FROM asset_loads
		ORDER BY loaded_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset loads: %w", err)
	}
	defer rows.Close()

	var loads []models.AssetLoad
	for rows.Next() {
		var l models.AssetLoad
		var host sql.NullString
		var loadedAt int64

		if err := rows.Scan(&l.ID, &host, &l.Threshold, &loadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		l.Host = host.String
		l.LoadedAt = time.UnixMilli(loadedAt).UTC()
		loads = append(loads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate asset loads: %w", err)
	}

	for i := range loads {
		assets, err := c.fingerprints(loads[i].ID)
		if err != nil {
			return nil, err
		}
		loads[i].Assets = assets
	}

	return loads, nil
}

func (c *Client) fingerprints(loadID string) ([]models.AssetRecord, error) {
	rows, err := c.db.Query(
		`SELECT id, load_id, kind, path, sha256, size FROM asset_fingerprints WHERE load_id = ? ORDER BY id`,
		loadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprints: %w", err)
	}
	defer rows.Close()

	var records []models.AssetRecord
	for rows.Next() {
		var r models.AssetRecord
		if err := rows.Scan(&r.ID, &r.LoadID, &r.Kind, &r.Path, &r.SHA256, &r.Size); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// LastFingerprint returns the most recently recorded fingerprint of kind, or
// nil when none has been recorded.
func (c *Client) LastFingerprint(kind string) (*models.AssetRecord, error) {
	query := `
		SELECT f.id, f.load_id, f.kind, f.path, f.sha256, f.size
		FROM asset_fingerprints f
		JOIN asset_loads l ON l.id = f.load_id
		WHERE f.kind = ?
		ORDER BY l.loaded_at DESC, f.id DESC
		LIMIT 1
	`

	var r models.AssetRecord
	err := c.db.QueryRow(query, kind).Scan(&r.ID, &r.LoadID, &r.Kind, &r.Path, &r.SHA256, &r.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last fingerprint: %w", err)
	}

	return &r, nil
}
