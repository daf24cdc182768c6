package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"weather-station/internal/telemetry"
)

func TestLatestMirror_Valkey(t *testing.T) {
	addr := os.Getenv("TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("TEST_VALKEY_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, err := NewLatestMirror(ctx, addr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close()

	if err := m.rdb.Del(ctx, latestKey).Err(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := m.Get(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	sr := telemetry.StoredReading{
		ID:        7,
		Reading:   telemetry.Reading{TempRoom: 21.5, Lux: 300, Timestamp: 1_700_000_000},
		CreatedAt: time.Unix(1_700_000_001, 0).UTC(),
	}
	if err := m.Set(ctx, sr); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := m.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != sr.ID || got.Reading != sr.Reading || !got.CreatedAt.Equal(sr.CreatedAt) {
		t.Errorf("expected %+v, got %+v", sr, got)
	}

	ttl, err := m.rdb.TTL(ctx, latestKey).Result()
	if err != nil || ttl <= 0 || ttl > latestTTL {
		t.Errorf("expected TTL within 24h, got %v (err=%v)", ttl, err)
	}
}
