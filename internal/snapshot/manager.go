// Package snapshot seeds and publishes the disease database as a
// zstd-compressed SQLite file kept in R2.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/garyellow/eyecare-linebot-go/internal/r2client"
	"github.com/garyellow/eyecare-linebot-go/internal/storage"
)

// ErrNotFound is returned when no snapshot exists in the bucket.
var ErrNotFound = errors.New("snapshot: not found")

// ObjectStore is the subset of r2client.Client used for snapshots.
type ObjectStore interface {
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// Config holds snapshot manager configuration.
type Config struct {
	SnapshotKey string // R2 object key (e.g., "snapshots/eyecare.db.zst")
	TempDir     string // Directory for temporary files
}

// Manager downloads and uploads database snapshots.
type Manager struct {
	store  ObjectStore
	config Config
}

// New creates a new snapshot manager.
func New(store ObjectStore, cfg Config) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Manager{store: store, config: cfg}
}

// DownloadSnapshot fetches the snapshot and decompresses it to dbPath.
// The file is written next to dbPath and renamed into place, so a failed
// download never leaves a partial database behind. Returns the ETag.
func (m *Manager) DownloadSnapshot(ctx context.Context, dbPath string) (string, error) {
	body, etag, err := m.store.Download(ctx, m.config.SnapshotKey)
	if err != nil {
		if errors.Is(err, r2client.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("download snapshot: %w", err)
	}
	defer func() { _ = body.Close() }()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return "", fmt.Errorf("create database directory: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.download-%d", dbPath, time.Now().UnixNano())
	if err := r2client.DecompressStream(body, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("decompress snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, dbPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("install snapshot: %w", err)
	}

	slog.InfoContext(ctx, "snapshot downloaded",
		"key", m.config.SnapshotKey,
		"etag", etag,
		"path", dbPath)
	return etag, nil
}

// UploadSnapshot compresses a consistent copy of db and uploads it.
// Returns the ETag of the uploaded snapshot.
func (m *Manager) UploadSnapshot(ctx context.Context, db *storage.DB) (string, error) {
	snapshotPath := filepath.Join(m.config.TempDir, fmt.Sprintf("snapshot_%d.db", time.Now().UnixNano()))
	if err := db.CreateSnapshot(ctx, snapshotPath); err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer func() { _ = os.Remove(snapshotPath) }()

	compressedPath := snapshotPath + ".zst"
	if err := r2client.CompressFile(snapshotPath, compressedPath); err != nil {
		return "", fmt.Errorf("compress database: %w", err)
	}
	defer func() { _ = os.Remove(compressedPath) }()

	compressed, err := os.Open(compressedPath)
	if err != nil {
		return "", fmt.Errorf("open compressed file: %w", err)
	}
	defer func() { _ = compressed.Close() }()

	etag, err := m.store.Upload(ctx, m.config.SnapshotKey, compressed, "application/zstd")
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	return etag, nil
}

// SeedIfMissing downloads the snapshot to dbPath unless a file already exists
// there. A missing snapshot is not an error; the store starts empty.
func (m *Manager) SeedIfMissing(ctx context.Context, dbPath string) (bool, error) {
	if _, err := os.Stat(dbPath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat database: %w", err)
	}

	if _, err := m.DownloadSnapshot(ctx, dbPath); err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.WarnContext(ctx, "no snapshot published, starting with empty store", "key", m.config.SnapshotKey)
			return false, nil
		}
		return false, err
	}
	return true, nil
}
