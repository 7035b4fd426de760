// Package ledger records derived files in Postgres as conversions complete.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Record is one derived file of a media item
type Record struct {
	MediaID          string    `json:"media_id"`
	ConversionName   string    `json:"conversion_name"`
	Extension        string    `json:"extension"`
	Disk             string    `json:"disk"`
	CollectionName   string    `json:"collection_name"`
	FirstCompletedAt time.Time `json:"first_completed_at"`
	LastCompletedAt  time.Time `json:"last_completed_at"`
	CompletedCount   int       `json:"completed_count"`
}

// FileName returns the stored file name of the derived file
func (r Record) FileName() string {
	return pipeline.DerivedFile{ConversionName: r.ConversionName, Extension: r.Extension}.FileName()
}

// Ledger tracks derived files per media item
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to Postgres and prepares the ledger table
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Ledger, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}
	return NewLedger(ctx, db, logger)
}

// NewLedger creates a ledger on an existing connection
func NewLedger(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{db: db, logger: logger}

	// Create table if not exists
	if err := l.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger table: %w", err)
	}

	return l, nil
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}

// ensureTable creates the derived_files table if it doesn't exist
func (l *Ledger) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS derived_files (
			media_id TEXT NOT NULL,
			conversion_name TEXT NOT NULL,
			extension TEXT NOT NULL DEFAULT '',
			disk TEXT NOT NULL DEFAULT '',
			collection_name TEXT NOT NULL DEFAULT '',
			owner_type TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL DEFAULT '',
			first_completed_at TIMESTAMPTZ DEFAULT NOW(),
			last_completed_at TIMESTAMPTZ DEFAULT NOW(),
			completed_count INTEGER DEFAULT 1,
			PRIMARY KEY (media_id, conversion_name)
		)
	`

	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create derived_files table: %w", err)
	}

	l.logger.Debug("derived_files table ready")
	return nil
}

// Record upserts a derived file and returns how often it has been completed
func (l *Ledger) Record(ctx context.Context, media pipeline.Media, file pipeline.DerivedFile) (int, error) {
	// Upsert: increment completed_count if exists, insert if not
	query := `
		INSERT INTO derived_files (media_id, conversion_name, extension, disk, collection_name, owner_type, owner_id,
			first_completed_at, last_completed_at, completed_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		ON CONFLICT (media_id, conversion_name) DO UPDATE
		SET last_completed_at = NOW(),
		    completed_count = derived_files.completed_count + 1,
		    extension = EXCLUDED.extension,
		    disk = EXCLUDED.disk,
		    collection_name = EXCLUDED.collection_name
		RETURNING completed_count
	`

	var count int
	err := l.db.QueryRowContext(ctx, query,
		media.ID,
		file.ConversionName,
		file.Extension,
		media.Disk,
		media.CollectionName,
		media.Owner.Type,
		media.Owner.ID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to record derived file: %w", err)
	}

	return count, nil
}

// List returns the recorded derived files of a media item
func (l *Ledger) List(ctx context.Context, mediaID string) ([]Record, error) {
	query := `
		SELECT media_id, conversion_name, extension, disk, collection_name,
			first_completed_at, last_completed_at, completed_count
		FROM derived_files
		WHERE media_id = $1
		ORDER BY conversion_name
	`

	rows, err := l.db.QueryContext(ctx, query, mediaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list derived files: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.MediaID,
			&r.ConversionName,
			&r.Extension,
			&r.Disk,
			&r.CollectionName,
			&r.FirstCompletedAt,
			&r.LastCompletedAt,
			&r.CompletedCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan derived file: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ForgetMedia deletes the records of one media item
func (l *Ledger) ForgetMedia(ctx context.Context, mediaID string) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM derived_files WHERE media_id = $1`, mediaID)
	if err != nil {
		return 0, fmt.Errorf("failed to forget media: %w", err)
	}
	return res.RowsAffected()
}

// ForgetCollection deletes the records of an owner's collection
func (l *Ledger) ForgetCollection(ctx context.Context, owner pipeline.Owner, collection string) (int64, error) {
	query := `DELETE FROM derived_files WHERE owner_type = $1 AND owner_id = $2 AND collection_name = $3`

	res, err := l.db.ExecContext(ctx, query, owner.Type, owner.ID, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to forget collection: %w", err)
	}
	return res.RowsAffected()
}
