// Package ordersdb holds the Postgres adapters behind the order service:
// the record store, the payment gateway, and the saga run log.
package ordersdb

import (
	"context"
	"database/sql"
	"errors"

	"orderflow/internal/store"
)

// PostgresStore persists order records in a single table keyed by the
// partition/sort pair.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a record store backed by Postgres.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresStoreWithSchema initializes the schema then returns the store.
func NewPostgresStoreWithSchema(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	st := NewPostgresStore(db)
	if err := st.InitSchema(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// InitSchema creates the records table if it does not exist.
func (p *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS order_records (
			partition_key TEXT NOT NULL,
			sort_key TEXT NOT NULL,
			status TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (partition_key, sort_key)
		)
	`)
	return err
}

// Put upserts the record, preserving created_at on replacement.
func (p *PostgresStore) Put(ctx context.Context, rec store.Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO order_records (partition_key, sort_key, status, data, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (partition_key, sort_key)
		DO UPDATE SET status = EXCLUDED.status, data = EXCLUDED.data, updated_at = NOW()`,
		rec.Key.Partition, rec.Key.Sort, rec.Status, rec.Data,
	)
	return err
}

// Get returns the record under key, or store.ErrNotFound.
func (p *PostgresStore) Get(ctx context.Context, key store.Key) (store.Record, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT status, data, created_at, updated_at
		FROM order_records
		WHERE partition_key = $1 AND sort_key = $2`,
		key.Partition, key.Sort,
	)

	rec := store.Record{Key: key}
	if err := row.Scan(&rec.Status, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, err
	}
	return rec, nil
}

// Query returns the partition's records whose sort key starts with sortPrefix,
// ordered by sort key.
func (p *PostgresStore) Query(ctx context.Context, partition, sortPrefix string) ([]store.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT sort_key, status, data, created_at, updated_at
		FROM order_records
		WHERE partition_key = $1 AND sort_key LIKE $2 || '%'
		ORDER BY sort_key`,
		partition, sortPrefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		rec := store.Record{Key: store.Key{Partition: partition}}
		if err := rows.Scan(&rec.Key.Sort, &rec.Status, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateStatus sets the record's status and returns the updated record, or
// store.ErrNotFound.
func (p *PostgresStore) UpdateStatus(ctx context.Context, key store.Key, status string) (store.Record, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE order_records
		SET status = $3, updated_at = NOW()
		WHERE partition_key = $1 AND sort_key = $2
		RETURNING data, created_at, updated_at`,
		key.Partition, key.Sort, status,
	)

	rec := store.Record{Key: key, Status: status}
	if err := row.Scan(&rec.Data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, err
	}
	return rec, nil
}

var _ store.Store = (*PostgresStore)(nil)
