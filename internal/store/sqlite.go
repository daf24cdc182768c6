package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"weather-station/internal/telemetry"
)

// SQLiteStore je lokální úložiště pro edge zařízení a vývoj.
// created_at se ukládá jako unix milisekundy.
type SQLiteStore struct {
	db *sql.DB
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sensor_readings (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		temp_room  REAL NOT NULL,
		hum_room   REAL NOT NULL,
		temp_out   REAL NOT NULL,
		lux        REAL NOT NULL,
		ldr_raw    REAL NOT NULL,
		ts         INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sensor_readings_ts ON sensor_readings(ts);`,
	`CREATE INDEX IF NOT EXISTS idx_sensor_readings_created_at ON sensor_readings(created_at);`,
}

// NewSQLite otevře (a případně vytvoří) databázový soubor.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := sqliteDir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite zvládá jen jednoho zapisovatele

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// sqliteDir vrací adresář databázového souboru, nebo "" pro in-memory DSN.
func sqliteDir(path string) string {
	if strings.HasPrefix(path, "file:") {
		path = strings.TrimPrefix(path, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

func (s *SQLiteStore) Insert(ctx context.Context, r telemetry.Reading) (telemetry.StoredReading, error) {
	created := time.Now().UTC().Truncate(time.Millisecond)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sensor_readings (temp_room, hum_room, temp_out, lux, ldr_raw, ts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.TempRoom, r.HumRoom, r.TempOut, r.Lux, r.LDRRaw, r.Timestamp, created.UnixMilli())
	if err != nil {
		return telemetry.StoredReading{}, fmt.Errorf("insert reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return telemetry.StoredReading{}, fmt.Errorf("insert reading: %w", err)
	}
	return telemetry.StoredReading{ID: id, Reading: r, CreatedAt: created}, nil
}

func (s *SQLiteStore) Latest(ctx context.Context) (telemetry.StoredReading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, temp_room, hum_room, temp_out, lux, ldr_raw, ts, created_at
		 FROM sensor_readings
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`)
	if err != nil {
		return telemetry.StoredReading{}, fmt.Errorf("latest reading: %w", err)
	}
	readings, err := collectSQL(rows)
	if err != nil {
		return telemetry.StoredReading{}, err
	}
	if len(readings) == 0 {
		return telemetry.StoredReading{}, ErrNotFound
	}
	return readings[0], nil
}

func (s *SQLiteStore) Range(ctx context.Context, q Query) ([]telemetry.StoredReading, error) {
	from, to, limit := q.bounds()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, temp_room, hum_room, temp_out, lux, ldr_raw, ts, created_at
		 FROM sensor_readings
		 WHERE ts >= ? AND ts <= ? `+q.orderClause()+`
		 LIMIT ?`,
		from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("range readings: %w", err)
	}
	return collectSQL(rows)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func collectSQL(rows *sql.Rows) ([]telemetry.StoredReading, error) {
	defer rows.Close()

	var readings []telemetry.StoredReading
	for rows.Next() {
		var sr telemetry.StoredReading
		var createdMillis int64
		if err := rows.Scan(&sr.ID, &sr.TempRoom, &sr.HumRoom, &sr.TempOut, &sr.Lux, &sr.LDRRaw, &sr.Timestamp, &createdMillis); err != nil {
			return nil, err
		}
		sr.CreatedAt = time.UnixMilli(createdMillis).UTC()
		readings = append(readings, sr)
	}
	return readings, rows.Err()
}
