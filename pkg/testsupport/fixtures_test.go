package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFixture(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	testContent := []byte("test fixture content")

	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := LoadFixture(t, testFile)
	if string(result) != string(testContent) {
		t.Errorf("expected %q, got %q", testContent, result)
	}
}

func TestLoadFixtureJSON(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "criteria.json")
	data, err := json.Marshal(map[string]any{"fuelTypes": []string{"PB95"}, "page": 2})
	if err != nil {
		t.Fatalf("failed to marshal test data: %v", err)
	}
	if err := os.WriteFile(testFile, data, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	var result struct {
		FuelTypes []string `json:"fuelTypes"`
		Page      int      `json:"page"`
	}
	LoadFixtureJSON(t, testFile, &result)

	if result.Page != 2 || len(result.FuelTypes) != 1 || result.FuelTypes[0] != "PB95" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestLoadStations(t *testing.T) {
	stations := LoadStations(t, FixturePath("stations.json"))

	if len(stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stations))
	}
	if stations[0].Brand != stations[1].Brand {
		t.Error("expected brand names differing only in case to share a brand")
	}
	if len(stations[1].Prices) != 1 || stations[1].Prices[0].FuelType != "LPG" {
		t.Errorf("unexpected prices %+v", stations[1].Prices)
	}
}

func TestOpenRepository(t *testing.T) {
	repo := OpenRepository(t, LoadStations(t, FixturePath("stations.json")))

	got, err := repo.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 stored stations, got %d", len(got))
	}
	if got[0].BrandName() != "Orlen" {
		t.Errorf("expected first brand spelling to win, got %q", got[0].BrandName())
	}
}

func TestNewCacheService(t *testing.T) {
	svc, store := NewCacheService(t)

	if err := store.Set(context.Background(), "users:top", []byte{0x90}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if n, err := svc.RemoveByPattern(context.Background(), "users:*"); err != nil || n != 1 {
		t.Errorf("RemoveByPattern() = %d, %v; want 1, nil", n, err)
	}
}

func TestFixturePath(t *testing.T) {
	if got := FixturePath("stations.json"); got != filepath.Join("testdata", "stations.json") {
		t.Errorf("unexpected path %q", got)
	}
}
