// Package index keeps a SQLite record of fetched scene assets.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	id            TEXT PRIMARY KEY,
	scene_id      TEXT NOT NULL,
	band          TEXT NOT NULL,
	href          TEXT NOT NULL,
	path          TEXT NOT NULL,
	bytes         INTEGER NOT NULL,
	converted     TEXT NOT NULL DEFAULT '',
	published     TEXT NOT NULL DEFAULT '',
	downloaded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS downloads_scene ON downloads(scene_id);
`

// SQLiteIndex implements the DownloadIndex port on a SQLite database.
type SQLiteIndex struct {
	mu sync.Mutex
	db *sql.DB
}

var _ output.DownloadIndex = (*SQLiteIndex)(nil)

// Open opens or creates the index database at path.
func Open(ctx context.Context, path string) (*SQLiteIndex, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, &domain.StorageError{Operation: "open index", Key: path, Err: err}
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, &domain.StorageError{Operation: "open index", Key: path, Err: err}
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Operation: "open index", Key: path, Err: fmt.Errorf("creating schema: %w", err)}
	}

	return &SQLiteIndex{db: db}, nil
}

// Record stores a fetched asset under a new id.
func (x *SQLiteIndex) Record(ctx context.Context, a domain.DownloadedAsset) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	at := a.FetchedAt
	if at.IsZero() {
		at = time.Now()
	}

	_, err := x.db.ExecContext(ctx,
		`INSERT INTO downloads (id, scene_id, band, href, path, bytes, converted, published, downloaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), a.SceneID, a.Band, a.Href, a.Path, a.Bytes, a.Converted, a.Published,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &domain.StorageError{Operation: "record", Key: a.SceneID + "/" + a.Band, Err: err}
	}
	return nil
}

// List returns recorded assets, oldest first. An empty sceneID lists all.
func (x *SQLiteIndex) List(ctx context.Context, sceneID string) ([]domain.DownloadedAsset, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	query := `SELECT scene_id, band, href, path, bytes, converted, published, downloaded_at FROM downloads`
	var args []any
	if sceneID != "" {
		query += ` WHERE scene_id = ?`
		args = append(args, sceneID)
	}
	query += ` ORDER BY downloaded_at, rowid`

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Key: sceneID, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var assets []domain.DownloadedAsset
	for rows.Next() {
		var (
			a  domain.DownloadedAsset
			at string
		)
		if err := rows.Scan(&a.SceneID, &a.Band, &a.Href, &a.Path, &a.Bytes, &a.Converted, &a.Published, &at); err != nil {
			return nil, &domain.StorageError{Operation: "list", Key: sceneID, Err: err}
		}
		if a.FetchedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, &domain.StorageError{Operation: "list", Key: sceneID, Err: fmt.Errorf("bad timestamp %q: %w", at, err)}
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Operation: "list", Key: sceneID, Err: err}
	}
	return assets, nil
}

// Close closes the database.
func (x *SQLiteIndex) Close() error {
	return x.db.Close()
}
