package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/storesync/internal/db"
	"github.com/sells-group/storesync/internal/model"
)

// DefaultTable is the snapshot table name.
const DefaultTable = "store_snapshots"

// PostgresStore keeps named snapshots as JSONB rows.
type PostgresStore struct {
	pool  db.Pool
	table string
	name  string
}

// NewPostgres returns a store for the snapshot called name.
func NewPostgres(pool db.Pool, table, name string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{pool: pool, table: table, name: name}
}

// Migrate creates the snapshot table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	name       TEXT PRIMARY KEY,
	stores     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, db.Sanitize(s.table)))
	return eris.Wrap(err, "postgres: migrate snapshots")
}

// Load returns the saved stores, or nil if none were saved.
func (s *PostgresStore) Load(ctx context.Context) ([]model.Store, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT stores FROM %s WHERE name = $1`, db.Sanitize(s.table)), s.name,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load snapshot %s", s.name)
	}

	var stores []model.Store
	if err := json.Unmarshal(data, &stores); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode snapshot %s", s.name)
	}
	return stores, nil
}

// Save upserts the snapshot.
func (s *PostgresStore) Save(ctx context.Context, stores []model.Store) error {
	if stores == nil {
		stores = []model.Store{}
	}
	data, err := json.Marshal(stores)
	if err != nil {
		return eris.Wrap(err, "postgres: encode snapshot")
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (name, stores, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET stores = EXCLUDED.stores, updated_at = now()`,
		db.Sanitize(s.table)), s.name, data)
	if err != nil {
		return eris.Wrapf(err, "postgres: save snapshot %s", s.name)
	}
	return nil
}
