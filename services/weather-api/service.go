package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weather-station/internal/store"
	"weather-station/internal/telemetry"
)

// ErrHistoryDisabled: služba běží bez úložiště (STORE_URL prázdné).
var ErrHistoryDisabled = errors.New("history store not configured")

// LatestSource je in-memory cache ingest služby.
type LatestSource interface {
	Latest() (telemetry.Reading, bool)
}

// MirrorReader čte zrcadlo posledního měření (store.LatestMirror).
type MirrorReader interface {
	Get(ctx context.Context) (telemetry.StoredReading, error)
}

// Service skládá čtecí dotazy z cache, Valkey a databáze.
// mirror i st mohou být nil.
type Service struct {
	live   LatestSource
	mirror MirrorReader
	st     store.ReadingStore
}

func NewService(live LatestSource, mirror MirrorReader, st store.ReadingStore) *Service {
	return &Service{live: live, mirror: mirror, st: st}
}

// Latest hledá poslední měření postupně: paměť -> Valkey -> databáze.
// Vrací i název zdroje. store.ErrNotFound, pokud nic nemá ani jeden.
func (s *Service) Latest(ctx context.Context) (telemetry.Reading, string, error) {
	// 1. Paměť (nejrychlejší, plněná z MQTT)
	if r, ok := s.live.Latest(); ok {
		return r, "cache", nil
	}

	// 2. Valkey (poslední uložené, přežije restart této služby)
	var errs []error
	if s.mirror != nil {
		sr, err := s.mirror.Get(ctx)
		if err == nil {
			return sr.Reading, "valkey", nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			errs = append(errs, err)
		}
	}

	// 3. Databáze
	if s.st != nil {
		sr, err := s.st.Latest(ctx)
		if err == nil {
			return sr.Reading, "store", nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return telemetry.Reading{}, "", fmt.Errorf("latest reading: %w", errors.Join(errs...))
	}
	return telemetry.Reading{}, "", store.ErrNotFound
}

// HistoryQuery: časové okno a limit pro graf.
type HistoryQuery struct {
	From       time.Time
	To         time.Time
	Limit      int
	Descending bool
}

func (s *Service) History(ctx context.Context, q HistoryQuery) ([]telemetry.StoredReading, error) {
	if s.st == nil {
		return nil, ErrHistoryDisabled
	}

	readings, err := s.st.Range(ctx, store.Query{
		From:       q.From,
		To:         q.To,
		Limit:      q.Limit,
		Descending: q.Descending,
	})
	if err != nil {
		return nil, fmt.Errorf("chyba načítání historie: %w", err)
	}
	if readings == nil {
		readings = []telemetry.StoredReading{}
	}
	return readings, nil
}
