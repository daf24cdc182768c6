package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"weather-station/internal/metrics"
	"weather-station/internal/telemetry"
)

// Mirror dostane každé úspěšně uložené měření (LatestMirror).
type Mirror interface {
	Set(ctx context.Context, sr telemetry.StoredReading) error
}

type WriterOptions struct {
	QueueSize       int           // výchozí 256
	InsertTimeout   time.Duration // výchozí 5s
	BreakerFailures uint32        // po kolika chybách za sebou se jistič otevře, výchozí 5
	BreakerCooldown time.Duration // jak dlouho zůstane otevřený, výchozí 30s
}

// Writer ukládá měření na pozadí jednou goroutinou.
// Zápis neblokuje příjem zpráv: plná fronta = měření se zahodí.
// Neúspěšný zápis se neopakuje.
type Writer struct {
	store   ReadingStore
	mirror  Mirror
	logger  *slog.Logger
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker

	// Při otevřeném jističi logujeme jen občas.
	openLog *rate.Sometimes

	mu     sync.RWMutex
	closed bool
	queue  chan telemetry.Reading
	done   chan struct{}
}

// NewWriter spustí worker. mirror může být nil.
func NewWriter(st ReadingStore, mirror Mirror, opts WriterOptions, logger *slog.Logger) *Writer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.InsertTimeout <= 0 {
		opts.InsertTimeout = 5 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}

	w := &Writer{
		store:   st,
		mirror:  mirror,
		logger:  logger,
		timeout: opts.InsertTimeout,
		openLog: &rate.Sometimes{Interval: 30 * time.Second},
		queue:   make(chan telemetry.Reading, opts.QueueSize),
		done:    make(chan struct{}),
	}

	failures := opts.BreakerFailures
	w.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reading-store",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Stav jističe úložiště se změnil", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	go w.run()
	return w
}

// Enqueue zařadí měření k uložení. Vrací false, pokud bylo zahozeno.
func (w *Writer) Enqueue(r telemetry.Reading) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		metrics.PersistResults.WithLabelValues("dropped").Inc()
		return false
	}

	select {
	case w.queue <- r:
		return true
	default:
		metrics.PersistResults.WithLabelValues("dropped").Inc()
		w.logger.Warn("Fronta úložiště je plná, měření zahozeno", "timestamp", r.Timestamp)
		return false
	}
}

// Close přestane přijímat nová měření a počká, až se fronta vyprázdní.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush persistence queue: %w", ctx.Err())
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for r := range w.queue {
		w.persist(r)
	}
}

func (w *Writer) persist(r telemetry.Reading) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	res, err := w.cb.Execute(func() (interface{}, error) {
		return w.store.Insert(ctx, r)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.PersistResults.WithLabelValues("breaker_open").Inc()
		w.openLog.Do(func() {
			w.logger.Warn("Úložiště nedostupné, měření se neukládají", "error", err)
		})
		return
	}
	if err != nil {
		metrics.PersistResults.WithLabelValues("error").Inc()
		w.logger.Error("Chyba při ukládání dat", "timestamp", r.Timestamp, "error", err)
		return
	}

	metrics.PersistResults.WithLabelValues("ok").Inc()
	stored := res.(telemetry.StoredReading)
	w.logger.Debug("Data uložena", "id", stored.ID, "timestamp", stored.Timestamp)

	if w.mirror != nil {
		if err := w.mirror.Set(ctx, stored); err != nil {
			// Není kritické, historie je v DB.
			w.logger.Warn("Nepodařilo se aktualizovat Valkey", "error", err)
		}
	}
}
