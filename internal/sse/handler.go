// Package sse vystavuje živý proud měření jako Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"weather-station/internal/fanout"
	"weather-station/internal/metrics"
	"weather-station/internal/telemetry"
)

// Source poskytuje poslední měření a odběr budoucích (ingest.Service).
// SubscribeWithSnapshot musí být atomické vůči publikaci: měření je buď
// ve snapshotu, nebo dorazí přes fn, nikdy obojí a nikdy ani jedno.
type Source interface {
	SubscribeWithSnapshot(fn fanout.Callback) (telemetry.Reading, bool, func())
}

type Options struct {
	Heartbeat time.Duration // výchozí 15s
	Buffer    int           // kolik měření smí čekat na pomalého klienta, výchozí 16
}

// Handler obsluhuje jedno SSE spojení na request.
type Handler struct {
	source    Source
	heartbeat time.Duration
	buffer    int
	logger    *slog.Logger
}

func NewHandler(source Source, opts Options, logger *slog.Logger) *Handler {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 16
	}
	return &Handler{
		source:    source,
		heartbeat: opts.Heartbeat,
		buffer:    opts.Buffer,
		logger:    logger,
	}
}

var heartbeatFrame = []byte(":ping\n\n")

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := make(chan telemetry.Reading, h.buffer)
	snapshot, hasSnapshot, unsubscribe := h.source.SubscribeWithSnapshot(func(reading telemetry.Reading) error {
		select {
		case ch <- reading:
		default:
			h.logger.Debug("SSE klient nestíhá, měření zahozeno")
		}
		return nil
	})
	defer unsubscribe()

	metrics.LiveSubscribers.Inc()
	defer metrics.LiveSubscribers.Dec()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	if hasSnapshot {
		if err := writeReading(w, snapshot); err != nil {
			h.logger.Debug("SSE zápis selhal, končím", "error", err)
			return
		}
		flusher.Flush()
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case reading := <-ch:
			if err := writeReading(w, reading); err != nil {
				h.logger.Debug("SSE zápis selhal, končím", "error", err)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write(heartbeatFrame); err != nil {
				h.logger.Debug("SSE heartbeat selhal, končím", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeReading(w http.ResponseWriter, r telemetry.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
