package geocache

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/storesync/internal/db"
)

var cacheColumns = []string{"address", "latitude", "longitude"}

// PostgresStore keeps the cache in a Postgres table.
type PostgresStore struct {
	pool  db.Pool
	table string
}

// NewPostgres returns a store over pool. An empty table uses DefaultTable.
func NewPostgres(pool db.Pool, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{pool: pool, table: table}
}

// FetchAll returns every row, oldest first.
func (s *PostgresStore) FetchAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT address, latitude, longitude FROM %s ORDER BY id`, db.Sanitize(s.table)))
	if err != nil {
		return nil, unavailable("postgres fetch", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Address, &e.Latitude, &e.Longitude); err != nil {
			return nil, unavailable("postgres scan", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("postgres rows", err)
	}
	return entries, nil
}

// Append inserts entries with COPY.
func (s *PostgresStore) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.Address, e.Latitude, e.Longitude}
	}
	if _, err := db.CopyFrom(ctx, s.pool, s.table, cacheColumns, rows); err != nil {
		return unavailable("postgres append", err)
	}
	return nil
}

// Migrate creates the cache table. Tables created before the id column
// existed get it added; rows copied in one COPY share created_at, so id is
// the insertion order.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	table := db.Sanitize(s.table)
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id         BIGSERIAL PRIMARY KEY,
	address    TEXT NOT NULL,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table)); err != nil {
		return eris.Wrap(err, "postgres: migrate location cache")
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS id BIGSERIAL`, table))
	return eris.Wrap(err, "postgres: add location cache id")
}

// Count returns the number of rows, duplicates included.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, db.Sanitize(s.table))).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count location cache")
	}
	return n, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
