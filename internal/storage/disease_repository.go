package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
)

// DiseaseRepository is the read side used by the postback router.
type DiseaseRepository interface {
	GetDisease(ctx context.Context, diseaseType string, number int) (*Disease, error)
}

// GetDisease looks up one description on a single pooled connection that is
// released on every return path.
//
// Errors match domerrors.ErrStoreConnection when no connection could be
// acquired, domerrors.ErrQuery when the query failed and
// domerrors.ErrNotFound when no row matches.
func (db *DB) GetDisease(ctx context.Context, diseaseType string, number int) (*Disease, error) {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to acquire database connection", "error", err)
		return nil, fmt.Errorf("%w: %w", domerrors.ErrStoreConnection, err)
	}
	defer func() { _ = conn.Close() }()

	query := `SELECT description FROM disease WHERE type = ? AND number = ?`

	start := time.Now()
	d := Disease{Type: diseaseType, Number: number}
	err = conn.QueryRowContext(ctx, query, diseaseType, number).Scan(&d.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("disease type=%s number=%d: %w", diseaseType, number, domerrors.ErrNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to query disease",
			"type", diseaseType,
			"number", number,
			"error", err)
		return nil, fmt.Errorf("%w: %w", domerrors.ErrQuery, err)
	}

	// Warn on slow queries (>100ms)
	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "GetDisease",
			"duration_ms", duration.Milliseconds())
	}
	return &d, nil
}

// SaveDisease inserts or updates a disease record
func (db *DB) SaveDisease(ctx context.Context, d *Disease) error {
	return db.SaveDiseasesBatch(ctx, []*Disease{d})
}

// SaveDiseasesBatch upserts all records in a single transaction.
func (db *DB) SaveDiseasesBatch(ctx context.Context, diseases []*Disease) error {
	if len(diseases) == 0 {
		return nil
	}

	query := `
		INSERT INTO disease (type, number, description)
		VALUES (?, ?, ?)
		ON CONFLICT(type, number) DO UPDATE SET
			description = excluded.description
	`

	start := time.Now()
	err := db.ExecBatchContext(ctx, query, func(stmt *sql.Stmt) error {
		for _, d := range diseases {
			if _, err := stmt.ExecContext(ctx, d.Type, d.Number, d.Description); err != nil {
				return fmt.Errorf("failed to save disease %s/%d: %w", d.Type, d.Number, err)
			}
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to save diseases", "count", len(diseases), "error", err)
		return err
	}

	slog.DebugContext(ctx, "batch operation completed",
		"operation", "SaveDiseasesBatch",
		"count", len(diseases),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// CountDiseases returns the number of stored descriptions.
func (db *DB) CountDiseases(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM disease`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count diseases: %w", err)
	}
	return count, nil
}

// ListDiseases returns every record ordered by type and number.
func (db *DB) ListDiseases(ctx context.Context) ([]Disease, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT type, number, description FROM disease ORDER BY type, number`)
	if err != nil {
		return nil, fmt.Errorf("list diseases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Disease
	for rows.Next() {
		var d Disease
		if err := rows.Scan(&d.Type, &d.Number, &d.Description); err != nil {
			return nil, fmt.Errorf("scan disease: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
