package testsupport

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-fuel-stations/cache"
	"github.com/goliatone/go-fuel-stations/internal/cacheinfra"
	"github.com/goliatone/go-fuel-stations/station"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t *testing.T, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadStations decodes a station fixture in the seed format.
func LoadStations(t *testing.T, path string) []station.Station {
	t.Helper()

	stations, err := station.DecodeSeed(bytes.NewReader(LoadFixture(t, path)))
	if err != nil {
		t.Fatalf("failed to decode stations from %s: %v", path, err)
	}
	return stations
}

// DefaultStations returns the embedded seed stations.
func DefaultStations(t *testing.T) []station.Station {
	t.Helper()

	stations, err := station.DefaultSeed()
	if err != nil {
		t.Fatalf("failed to decode default seed: %v", err)
	}
	return stations
}

// OpenRepository creates a sqlite database in a temporary directory, creates
// the schema and saves stations into it. The database is closed when the test
// ends.
func OpenRepository(t *testing.T, stations []station.Station) *station.BunRepository {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "stations.db") + "?_foreign_keys=on"
	db, err := station.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo := station.NewBunRepository(db)
	ctx := context.Background()
	if err := repo.CreateSchema(ctx); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	for i := range stations {
		st := stations[i]
		if err := repo.SaveStation(ctx, &st); err != nil {
			t.Fatalf("failed to save station %s: %v", st.ID, err)
		}
	}
	return repo
}

// NewCacheService returns a cache service over a small in-process store.
func NewCacheService(t *testing.T, opts ...cache.Option) (*cache.Service, *cacheinfra.MemoryStore) {
	t.Helper()

	cfg := cacheinfra.DefaultConfig()
	cfg.Capacity = 1000
	cfg.NumShards = 4
	store, err := cacheinfra.NewMemoryStore(cfg)
	if err != nil {
		t.Fatalf("failed to create memory store: %v", err)
	}
	svc, err := cache.NewService(store, cache.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("failed to create cache service: %v", err)
	}
	return svc, store
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}
