package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weather-station/internal/store"
	"weather-station/internal/sysinfo"
	"weather-station/internal/telemetry"
)

// Ingestor je část ingest.Service, kterou API potřebuje.
type Ingestor interface {
	EnsureConnected() error
	Connected() bool
	Subscribers() int
}

// APIHandler sdružuje HTTP handlery.
type APIHandler struct {
	svc     *Service
	ingest  Ingestor
	stream  http.Handler
	broker  string
	topic   string
	started time.Time
	logger  *slog.Logger

	// now a hostStats jdou v testech podvrhnout.
	now       func() time.Time
	hostStats func() sysinfo.Stats
}

func NewAPIHandler(svc *Service, ingest Ingestor, stream http.Handler, broker, topic string, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		svc:       svc,
		ingest:    ingest,
		stream:    stream,
		broker:    broker,
		topic:     topic,
		started:   time.Now(),
		logger:    logger,
		now:       time.Now,
		hostStats: func() sysinfo.Stats { return sysinfo.Collect(logger) },
	}
}

// Routes sestaví chi router.
func (h *APIHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(h.ensureConnected)

		api.Get("/sensor-data", h.stream.ServeHTTP)
		api.Get("/sensor-data/latest", h.handleLatest)
		api.Get("/sensor-history", h.handleHistory)
		api.Get("/status", h.handleStatus)
	})
	return r
}

// ensureConnected: každý API request nejdřív zajistí spojení s brokerem.
// Neúspěch request nezastaví, data mohou přijít z úložiště.
func (h *APIHandler) ensureConnected(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.ingest.EnsureConnected(); err != nil {
			h.logger.Warn("MQTT bootstrap selhal", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

// handleLatest: GET /api/sensor-data/latest
func (h *APIHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	reading, source, err := h.svc.Latest(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no reading yet"})
		return
	}
	if err != nil {
		h.logger.Error("Chyba při získávání posledního měření", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load latest reading"})
		return
	}
	writeJSON(w, http.StatusOK, LatestResponse{Reading: reading, Source: source})
}

// handleHistory: GET /api/sensor-history?hours=24&limit=100&order=asc
// nebo ?from=<unix>&to=<unix>
func (h *APIHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	q, err := parseHistoryQuery(r.URL.Query(), h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid query",
			Message: err.Error(),
			Data:    []telemetry.StoredReading{},
		})
		return
	}

	readings, err := h.svc.History(r.Context(), q)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrHistoryDisabled) {
			status = http.StatusServiceUnavailable
		}
		h.logger.Error("Chyba při získávání historie", "error", err)
		writeJSON(w, status, ErrorResponse{
			Error:   "failed to fetch sensor history",
			Message: err.Error(),
			Data:    []telemetry.StoredReading{},
		})
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Data:  readings,
		Count: len(readings),
		From:  q.From.UTC(),
		To:    q.To.UTC(),
	})
}

// handleStatus: GET /api/status
func (h *APIHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, hasReading := h.svc.live.Latest()
	writeJSON(w, http.StatusOK, StatusResponse{
		Broker:        h.broker,
		Topic:         h.topic,
		Connected:     h.ingest.Connected(),
		UptimeSeconds: int64(h.now().Sub(h.started).Seconds()),
		Subscribers:   h.ingest.Subscribers(),
		HasReading:    hasReading,
		Host:          h.hostStats(),
	})
}

const maxHistoryHours = 24 * 366

func parseHistoryQuery(values url.Values, now time.Time) (HistoryQuery, error) {
	q := HistoryQuery{To: now, Limit: store.DefaultLimit}

	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return HistoryQuery{}, fmt.Errorf("limit must be a positive integer, got %q", v)
		}
		q.Limit = n
	}

	switch values.Get("order") {
	case "", "asc":
	case "desc":
		q.Descending = true
	default:
		return HistoryQuery{}, fmt.Errorf("order must be asc or desc, got %q", values.Get("order"))
	}

	if v := values.Get("to"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return HistoryQuery{}, fmt.Errorf("to must be unix seconds, got %q", v)
		}
		q.To = time.Unix(ts, 0)
	}

	if v := values.Get("from"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return HistoryQuery{}, fmt.Errorf("from must be unix seconds, got %q", v)
		}
		q.From = time.Unix(ts, 0)
	} else {
		hours := 24.0
		if v := values.Get("hours"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil || parsed <= 0 || parsed > maxHistoryHours {
				return HistoryQuery{}, fmt.Errorf("hours must be between 0 and %d, got %q", maxHistoryHours, v)
			}
			hours = parsed
		}
		q.From = q.To.Add(-time.Duration(hours * float64(time.Hour)))
	}

	if q.From.After(q.To) {
		return HistoryQuery{}, errors.New("from must not be after to")
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// CorsMiddleware povolí volání API z prohlížeče z jiné domény/portu.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Cache-Control, Last-Event-ID")

		// Preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger loguje každý request přes slog (JSON).
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
