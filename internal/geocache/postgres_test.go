package geocache

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storesync/internal/normalize"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgres(mock, ""), mock
}

func TestPostgresStore_FetchAll(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT address, latitude, longitude FROM "location_cache" ORDER BY id`).
		WillReturnRows(mock.NewRows([]string{"address", "latitude", "longitude"}).
			AddRow("BrandX, 1 Main, City", 1.0, 2.0).
			AddRow("BrandY, 2 Main, City", 3.0, 4.0))

	entries, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Address: "BrandX, 1 Main, City", Latitude: 1, Longitude: 2}, entries[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchAll_Unavailable(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT address`).WillReturnError(errors.New("dial tcp: connection refused"))

	_, err := s.FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Append(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"location_cache"}, []string{"address", "latitude", "longitude"}).
		WillReturnResult(2)

	err := s.Append(context.Background(), []Entry{
		{Address: "a", Latitude: 1, Longitude: 2},
		{Address: "b", Latitude: 3, Longitude: 4},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Append_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	require.NoError(t, s.Append(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Append_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"location_cache"}, []string{"address", "latitude", "longitude"}).
		WillReturnError(errors.New("permission denied"))

	err := s.Append(context.Background(), []Entry{{Address: "a", Latitude: 1, Longitude: 2}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SchemaQualifiedTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgres(mock, "geo.location_cache")

	mock.ExpectCopyFrom(pgx.Identifier{"geo", "location_cache"}, []string{"address", "latitude", "longitude"}).
		WillReturnResult(1)

	require.NoError(t, s.Append(context.Background(), []Entry{{Address: "a", Latitude: 1, Longitude: 1}}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "location_cache" \(\s+id\s+BIGSERIAL PRIMARY KEY`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`ALTER TABLE "location_cache" ADD COLUMN IF NOT EXISTS id BIGSERIAL`).
		WillReturnResult(pgxmock.NewResult("ALTER", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_AlterFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`ALTER TABLE`).
		WillReturnError(errors.New("permission denied"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add location cache id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadKeepsLastRowOfSameCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY id`).
		WillReturnRows(mock.NewRows([]string{"address", "latitude", "longitude"}).
			AddRow("BrandX, 1 Main, City", 1.0, 2.0).
			AddRow("BrandX, 1 Main, City", 5.0, 6.0))

	idx, err := Load(context.Background(), s, normalize.Default())
	require.NoError(t, err)
	require.Len(t, idx, 1)
	for _, c := range idx {
		assert.Equal(t, 5.0, c.Latitude)
		assert.Equal(t, 6.0, c.Longitude)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "location_cache"`).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
