package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS usage_records (
	id                TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	vertical          TEXT NOT NULL,
	model             TEXT NOT NULL,
	prompt_tokens     INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens      INTEGER NOT NULL,
	timestamp         TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_tenant_time ON usage_records(tenant_id, timestamp);
`

// SQLiteStore persists usage records to a local SQLite database so billing
// data survives process restarts. It implements Sink.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the usage database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}

	// SQLite allows one writer; serialize access through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize usage schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// WriteBatch inserts records in a single transaction.
func (s *SQLiteStore) WriteBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO usage_records
			(id, tenant_id, vertical, model, prompt_tokens, completion_tokens, total_tokens, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.TenantID, string(rec.Vertical), rec.Model,
			rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.Timestamp,
		); err != nil {
			return fmt.Errorf("failed to insert usage record: %w", err)
		}
	}

	return tx.Commit()
}

// Count returns the number of persisted records for a tenant.
// Pass an empty tenant ID to count all records.
func (s *SQLiteStore) Count(ctx context.Context, tenantID string) (int, error) {
	var (
		n   int
		err error
	)
	if tenantID == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_records`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM usage_records WHERE tenant_id = ?`, tenantID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count usage records: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes persisted records before cutoff and returns the
// number removed. Used by the retention sweep.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM usage_records WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old usage records: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
