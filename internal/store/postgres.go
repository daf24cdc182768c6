package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"weather-station/internal/telemetry"
)

// PostgresStore ukládá historii do Postgres/TimescaleDB přes pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sensor_readings (
		id         BIGSERIAL PRIMARY KEY,
		temp_room  DOUBLE PRECISION NOT NULL,
		hum_room   DOUBLE PRECISION NOT NULL,
		temp_out   DOUBLE PRECISION NOT NULL,
		lux        DOUBLE PRECISION NOT NULL,
		ldr_raw    DOUBLE PRECISION NOT NULL,
		ts         BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sensor_readings_ts ON sensor_readings (ts)`,
	`CREATE INDEX IF NOT EXISTS idx_sensor_readings_created_at ON sensor_readings (created_at)`,
}

// NewPostgres otevře pool, ověří spojení a založí tabulku.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("chyba konfigurace DB: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("DB není dostupná: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, r telemetry.Reading) (telemetry.StoredReading, error) {
	stored := telemetry.StoredReading{Reading: r}

	query := `INSERT INTO sensor_readings (temp_room, hum_room, temp_out, lux, ldr_raw, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, query, r.TempRoom, r.HumRoom, r.TempOut, r.Lux, r.LDRRaw, r.Timestamp).
		Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return telemetry.StoredReading{}, fmt.Errorf("chyba insertu do PG: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	return stored, nil
}

// Latest vrací naposledy uložené měření (podle času uložení, ne měření).
func (s *PostgresStore) Latest(ctx context.Context) (telemetry.StoredReading, error) {
	query := `SELECT id, temp_room, hum_room, temp_out, lux, ldr_raw, ts, created_at
		FROM sensor_readings
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return telemetry.StoredReading{}, fmt.Errorf("chyba načítání posledního měření: %w", err)
	}
	readings, err := collectPG(rows)
	if err != nil {
		return telemetry.StoredReading{}, err
	}
	if len(readings) == 0 {
		return telemetry.StoredReading{}, ErrNotFound
	}
	return readings[0], nil
}

func (s *PostgresStore) Range(ctx context.Context, q Query) ([]telemetry.StoredReading, error) {
	from, to, limit := q.bounds()

	query := `SELECT id, temp_room, hum_room, temp_out, lux, ldr_raw, ts, created_at
		FROM sensor_readings
		WHERE ts >= $1 AND ts <= $2 ` + q.orderClause() + `
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("chyba načítání historie: %w", err)
	}
	return collectPG(rows)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func collectPG(rows pgx.Rows) ([]telemetry.StoredReading, error) {
	defer rows.Close()

	readings := make([]telemetry.StoredReading, 0, DefaultLimit)
	for rows.Next() {
		var sr telemetry.StoredReading
		if err := rows.Scan(&sr.ID, &sr.TempRoom, &sr.HumRoom, &sr.TempOut, &sr.Lux, &sr.LDRRaw, &sr.Timestamp, &sr.CreatedAt); err != nil {
			return nil, err
		}
		sr.CreatedAt = sr.CreatedAt.UTC()
		readings = append(readings, sr)
	}
	return readings, rows.Err()
}
