package main

import (
	"time"

	"weather-station/internal/sysinfo"
	"weather-station/internal/telemetry"
)

// HistoryResponse je odpověď na GET /api/sensor-history.
// Tvar {data, count, from, to} očekává frontend.
type HistoryResponse struct {
	Data  []telemetry.StoredReading `json:"data"`
	Count int                       `json:"count"`
	From  time.Time                 `json:"from"`
	To    time.Time                 `json:"to"`
}

// ErrorResponse: při chybě historie vracíme i prázdná data,
// aby graf na frontendu nespadl.
type ErrorResponse struct {
	Error   string                    `json:"error"`
	Message string                    `json:"message"`
	Data    []telemetry.StoredReading `json:"data"`
	Count   int                       `json:"count"`
}

// LatestResponse: poslední měření a odkud pochází (cache, valkey, store).
type LatestResponse struct {
	telemetry.Reading
	Source string `json:"source"`
}

// StatusResponse je diagnostika pro GET /api/status.
type StatusResponse struct {
	Broker        string        `json:"broker"`
	Topic         string        `json:"topic"`
	Connected     bool          `json:"connected"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Subscribers   int           `json:"subscribers"`
	HasReading    bool          `json:"has_reading"`
	Host          sysinfo.Stats `json:"host"`
}
