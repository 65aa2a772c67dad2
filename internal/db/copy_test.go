package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "location_cache", []string{"address"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"location_cache"}, []string{"address", "latitude"}).WillReturnResult(2)

	rows := [][]any{{"a", 1.0}, {"b", 2.0}}
	n, err := CopyFrom(context.Background(), mock, "location_cache", []string{"address", "latitude"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"geo", "location_cache"}, []string{"address"}).WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "geo.location_cache", []string{"address"}, [][]any{{"a"}})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"location_cache"}, []string{"address"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "location_cache", []string{"address"}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO location_cache")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, `"location_cache"`, Sanitize("location_cache"))
	assert.Equal(t, `"geo"."location_cache"`, Sanitize("geo.location_cache"))
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url is required")
}
