package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables.
func InitSchema(ctx context.Context, db *sql.DB) error {
	return createDiseaseTable(ctx, db)
}

// createDiseaseTable creates the lookup table of the postback router.
// description holds paragraphs separated by the literal "%D".
func createDiseaseTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS disease (
		type TEXT NOT NULL,
		number INTEGER NOT NULL,
		description TEXT NOT NULL,
		PRIMARY KEY (type, number)
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create disease table: %w", err)
	}

	return nil
}
