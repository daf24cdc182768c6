package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"weather-station/internal/telemetry"
)

const (
	latestKey = "weather:latest"
	latestTTL = 24 * time.Hour
)

// LatestMirror drží v Valkey (Redis) poslední uložené měření ("hot storage").
// Klíč expiruje po 24h, aby mrtvá stanice nevypadala živě.
type LatestMirror struct {
	rdb *redis.Client
}

// NewLatestMirror se připojí k Valkey a ověří spojení.
func NewLatestMirror(ctx context.Context, addr string) (*LatestMirror, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Valkey není dostupný: %w", err)
	}
	return &LatestMirror{rdb: rdb}, nil
}

// NewLatestMirrorFromClient obalí existujícího klienta.
func NewLatestMirrorFromClient(rdb *redis.Client) *LatestMirror {
	return &LatestMirror{rdb: rdb}
}

func (m *LatestMirror) Set(ctx context.Context, sr telemetry.StoredReading) error {
	data, err := json.Marshal(sr)
	if err != nil {
		return err
	}
	if err := m.rdb.Set(ctx, latestKey, data, latestTTL).Err(); err != nil {
		return fmt.Errorf("chyba update Valkey: %w", err)
	}
	return nil
}

// Get vrací zrcadlenou hodnotu, nebo ErrNotFound, pokud klíč neexistuje.
func (m *LatestMirror) Get(ctx context.Context) (telemetry.StoredReading, error) {
	data, err := m.rdb.Get(ctx, latestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return telemetry.StoredReading{}, ErrNotFound
	}
	if err != nil {
		return telemetry.StoredReading{}, fmt.Errorf("chyba čtení z Valkey: %w", err)
	}

	var sr telemetry.StoredReading
	if err := json.Unmarshal(data, &sr); err != nil {
		return telemetry.StoredReading{}, fmt.Errorf("poškozená hodnota ve Valkey: %w", err)
	}
	return sr, nil
}

func (m *LatestMirror) Close() error {
	return m.rdb.Close()
}
