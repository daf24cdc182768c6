// Package store ukládá měření do databáze (Postgres/TimescaleDB nebo SQLite)
// a poslední hodnotu zrcadlí do Valkey.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"weather-station/internal/telemetry"
)

// ErrNotFound: úložiště zatím neobsahuje žádné měření.
var ErrNotFound = errors.New("store: not found")

const (
	DefaultLimit = 100
	MaxLimit     = 5000
)

// ReadingStore je společné rozhraní obou databázových backendů.
type ReadingStore interface {
	Insert(ctx context.Context, r telemetry.Reading) (telemetry.StoredReading, error)
	Latest(ctx context.Context) (telemetry.StoredReading, error)
	Range(ctx context.Context, q Query) ([]telemetry.StoredReading, error)
	Close() error
}

// Query filtruje podle času měření (Reading.Timestamp), obě meze včetně.
// Nulový From/To = bez omezení.
type Query struct {
	From       time.Time
	To         time.Time
	Limit      int
	Descending bool
}

// bounds vrací meze v unix sekundách a limit oříznutý na povolený rozsah.
func (q Query) bounds() (from, to int64, limit int) {
	from, to = 0, math.MaxInt64
	if !q.From.IsZero() {
		from = q.From.Unix()
	}
	if !q.To.IsZero() {
		to = q.To.Unix()
	}

	limit = q.Limit
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return from, to, limit
}

func (q Query) orderClause() string {
	if q.Descending {
		return "ORDER BY ts DESC, id DESC"
	}
	return "ORDER BY ts ASC, id ASC"
}

// Open vybere backend podle schématu DSN:
//
//	postgres://..., postgresql://...  -> PostgresStore
//	sqlite://<cesta>, file:<cesta>    -> SQLiteStore
func Open(ctx context.Context, dsn string) (ReadingStore, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgres(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"):
		return NewSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("store: unsupported DSN scheme in %q", redact(dsn))
	}
}

// redact skryje heslo v DSN pro chybové hlášky.
func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":***" + dsn[at:]
	}
	return dsn
}
