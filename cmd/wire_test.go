package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storesync/internal/config"
	"github.com/sells-group/storesync/internal/model"
	"github.com/sells-group/storesync/internal/snapshot"
	"github.com/sells-group/storesync/pkg/here"
)

type fakeProviders struct {
	here  *httptest.Server
	radar *httptest.Server

	geocodeCalls atomic.Int32
	mu           sync.Mutex
	radarCalls   []string
}

func newFakeProviders(t *testing.T) *fakeProviders {
	t.Helper()
	p := &fakeProviders{}

	p.here = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.geocodeCalls.Add(1)
		pos := here.Position{Lat: 32.08, Lng: 34.77}
		if strings.Contains(r.URL.Query().Get("q"), "Herzl") {
			pos = here.Position{Lat: 32.8, Lng: 34.99}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{"title": "x", "position": pos}},
		})
	}))
	t.Cleanup(p.here.Close)

	p.radar = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.radarCalls = append(p.radarCalls, r.Method+" "+r.URL.Path)
		p.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"meta":{"code":200}}`))
	}))
	t.Cleanup(p.radar.Close)

	return p
}

func (p *fakeProviders) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.radarCalls...)
}

func testConfig(t *testing.T, p *fakeProviders) *config.Config {
	t.Helper()
	return &config.Config{
		Geocode:   config.GeocodeConfig{Enabled: true, BatchSize: 5},
		Geofence:  config.GeofenceConfig{Enabled: true, BatchSize: 10, Radius: 1000, Tag: "supermarkets"},
		Here:      config.HereConfig{URL: p.here.URL, APIKey: "k", TimeoutSecs: 5},
		Radar:     config.RadarConfig{URL: p.radar.URL, SecretKey: "s", TimeoutSecs: 5},
		Normalize: config.NormalizeConfig{LocaleToken: "יפו", Country: "ישראל"},
		Cache:     config.CacheConfig{Driver: "memory"},
		Snapshot:  config.SnapshotConfig{Driver: "file", Path: filepath.Join(t.TempDir(), "snapshot.json")},
	}
}

var testStores = []model.Store{
	{Brand: "RamiLevi", Address: "Herzl 1", City: "Haifa"},
	{Brand: "TivTaam", Address: "Dizengoff 50", City: "Tel Aviv"},
}

func TestInitSync_EndToEnd(t *testing.T) {
	p := newFakeProviders(t)
	c := testConfig(t, p)
	ctx := context.Background()

	env, err := initSync(ctx, c)
	require.NoError(t, err)
	defer env.Close()

	result, err := env.Run(ctx, testStores)
	require.NoError(t, err)
	require.Len(t, result.Stores, 2)
	assert.Equal(t, int32(2), p.geocodeCalls.Load())
	assert.Equal(t, []string{"POST /", "POST /"}, p.calls())
	assert.Equal(t, 2, result.Summary.Sync.Created)

	saved, err := snapshot.NewFile(c.Snapshot.Path).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	// Second run: both addresses are cached, one store is gone.
	result, err = env.Run(ctx, testStores[:1])
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.geocodeCalls.Load())
	assert.Equal(t, 1, result.Summary.Resolve.CacheHits)
	assert.Equal(t, 1, result.Summary.Sync.Deleted)
	assert.Equal(t, "DELETE /supermarkets/32.08_34.77", p.calls()[2])
}

func TestInitSync_DryRunKeepsSnapshot(t *testing.T) {
	p := newFakeProviders(t)
	c := testConfig(t, p)
	c.Geofence.DryRun = true
	ctx := context.Background()

	env, err := initSync(ctx, c)
	require.NoError(t, err)
	defer env.Close()

	result, err := env.Run(ctx, testStores)
	require.NoError(t, err)
	assert.True(t, result.Summary.Sync.DryRun)
	assert.Empty(t, p.calls())

	_, err = os.Stat(c.Snapshot.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestInitSync_GeocodeDisabledKeepsSnapshot(t *testing.T) {
	p := newFakeProviders(t)
	c := testConfig(t, p)
	c.Geocode.Enabled = false
	ctx := context.Background()

	env, err := initSync(ctx, c)
	require.NoError(t, err)
	defer env.Close()

	result, err := env.Run(ctx, testStores)
	require.NoError(t, err)
	assert.Equal(t, "geocode_disabled", result.Summary.GeofenceSkipped)
	assert.Zero(t, p.geocodeCalls.Load())

	_, err = os.Stat(c.Snapshot.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestSyncEnv_CorruptSnapshot(t *testing.T) {
	p := newFakeProviders(t)
	c := testConfig(t, p)
	require.NoError(t, os.WriteFile(c.Snapshot.Path, []byte("{"), 0o644))

	env, err := initSync(context.Background(), c)
	require.NoError(t, err)
	defer env.Close()

	_, err = env.Run(context.Background(), testStores)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load previous snapshot")
	assert.Zero(t, p.geocodeCalls.Load())
}

func TestInitSync_BadSnapshotDriver(t *testing.T) {
	p := newFakeProviders(t)
	c := testConfig(t, p)
	c.Snapshot.Driver = "s3"

	_, err := initSync(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported snapshot driver")
}

func TestOpenCache(t *testing.T) {
	ctx := context.Background()

	mem, err := openCache(ctx, config.CacheConfig{Driver: "memory"})
	require.NoError(t, err)
	require.NoError(t, mem.Close())

	lite, err := openCache(ctx, config.CacheConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	n, err := lite.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, lite.Close())

	_, err = openCache(ctx, config.CacheConfig{Driver: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported cache driver")

	_, err = openCache(ctx, config.CacheConfig{Driver: "postgres"})
	require.Error(t, err)
}

func TestOpenSnapshot_File(t *testing.T) {
	s, closeSnap, err := openSnapshot(context.Background(), config.SnapshotConfig{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "s.json"),
	})
	require.NoError(t, err)
	defer closeSnap()

	stores, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stores)
}
