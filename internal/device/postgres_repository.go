package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createDevicesTable = `
	CREATE TABLE IF NOT EXISTS devices (
		id         TEXT PRIMARY KEY,
		doc        JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// PostgresRepository is a PostgreSQL implementation of Repository. Each
// device is one row holding the record as a JSONB document.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the devices table if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createDevicesTable); err != nil {
		return fmt.Errorf("create devices table: %w", err)
	}
	return nil
}

// Get retrieves a device record.
func (r *PostgresRepository) Get(ctx context.Context, deviceID string) (*Record, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM devices WHERE id = $1`, deviceID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("decode device document: %w", err)
	}
	return &record, nil
}

// Merge locks the row, applies the patch to the stored document and writes
// it back in one transaction.
func (r *PostgresRepository) Merge(ctx context.Context, deviceID string, patch Patch) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var record Record
	var doc []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM devices WHERE id = $1 FOR UPDATE`, deviceID).Scan(&doc)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal(doc, &record); err != nil {
			return fmt.Errorf("decode device document: %w", err)
		}
	}

	patch.Apply(&record)

	updated, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("encode device document: %w", err)
	}

	query := `
		INSERT INTO devices (id, doc, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET
			doc = EXCLUDED.doc,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.Exec(ctx, query, deviceID, updated); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
