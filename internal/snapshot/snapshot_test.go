package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storesync/internal/model"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := NewFile(filepath.Join(t.TempDir(), "snap.json"))
	stores, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stores)
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "snap.json")
	s := NewFile(p)
	ctx := context.Background()

	in := []model.Store{
		{Brand: "RamiLevi", Address: "Herzl 1", City: "Haifa", Latitude: 32.8, Longitude: 34.99},
		{Brand: "TivTaam", Address: "Dizengoff 50", City: "Tel Aviv", Latitude: 32.08, Longitude: 34.77},
	}
	require.NoError(t, s.Save(ctx, in))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// Overwrite leaves no temp files behind.
	require.NoError(t, s.Save(ctx, in[:1]))
	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	out, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestFileStore_Corrupt(t *testing.T) {
	p := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(p, []byte("{not json"), 0o644))

	_, err := NewFile(p).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot: parse")
}

func TestFileStore_SaveToMissingDir(t *testing.T) {
	s := NewFile(filepath.Join(t.TempDir(), "missing", "snap.json"))
	assert.Error(t, s.Save(context.Background(), nil))
}
