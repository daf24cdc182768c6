// Package bridge přeposílá poslední měření z lokálního brokeru do cloudu
// v pevném intervalu místo přeposílání každé zprávy.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"weather-station/internal/metrics"
	"weather-station/internal/mqttconn"
	"weather-station/internal/telemetry"
)

// ErrNoReading: z lokálního brokeru zatím nic nepřišlo.
var ErrNoReading = errors.New("bridge: no reading received yet")

// ErrNotConnected je totéž jako mqttconn.ErrNotConnected.
var ErrNotConnected = mqttconn.ErrNotConnected

// Publisher je cloudové spojení (mqttconn.Connection).
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retain bool) error
	IsConnected() bool
}

// Writer volitelně ukládá přijatá měření i lokálně (store.Writer).
type Writer interface {
	Enqueue(r telemetry.Reading) bool
}

type Options struct {
	Topic    string
	Interval time.Duration // výchozí 5 minut
	QoS      byte          // výchozí 1
	Retain   bool

	// Now: zdroj času pro chybějící timestamp. Výchozí time.Now.
	Now func() time.Time
}

// Relay drží jediný slot s posledním měřením.
type Relay struct {
	opts   Options
	pub    Publisher
	writer Writer
	logger *slog.Logger

	mu     sync.Mutex
	latest *telemetry.Reading
}

// New: writer může být nil. Nulové QoS se bere jako 1 (at-least-once).
func New(opts Options, pub Publisher, writer Writer, logger *slog.Logger) *Relay {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.QoS == 0 {
		opts.QoS = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Relay{opts: opts, pub: pub, writer: writer, logger: logger}
}

// Accept je handler zpráv z lokálního brokeru. Přepíše slot.
func (r *Relay) Accept(topic string, payload []byte) {
	metrics.MessagesReceived.Inc()

	reading, err := telemetry.Normalize(payload, r.opts.Now())
	if err != nil {
		metrics.MessagesRejected.WithLabelValues("parse").Inc()
		r.logger.Warn("Zpráva odmítnuta", "topic", topic, "důvod", err)
		return
	}

	r.mu.Lock()
	r.latest = &reading
	r.mu.Unlock()

	r.logger.Debug("Přijato nové měření", "topic", topic, "timestamp", reading.Timestamp)

	if r.writer != nil {
		r.writer.Enqueue(reading)
	}
}

// Latest vrací obsah slotu.
func (r *Relay) Latest() (telemetry.Reading, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return telemetry.Reading{}, false
	}
	return *r.latest, true
}

// Tick publikuje obsah slotu do cloudu. Slot se publikací nemaže,
// při výpadku cloudu se stejné měření pošle při dalším ticku.
func (r *Relay) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !r.pub.IsConnected() {
		metrics.RelayPublishes.WithLabelValues("skipped_disconnected").Inc()
		r.logger.Warn("Cloud broker není připojen, přeskakuji publikaci")
		return ErrNotConnected
	}

	reading, ok := r.Latest()
	if !ok {
		metrics.RelayPublishes.WithLabelValues("skipped_empty").Inc()
		r.logger.Warn("Zatím nejsou data k publikaci")
		return ErrNoReading
	}

	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	if err := r.pub.Publish(r.opts.Topic, payload, r.opts.QoS, r.opts.Retain); err != nil {
		metrics.RelayPublishes.WithLabelValues("error").Inc()
		r.logger.Error("Publikace do cloudu selhala", "topic", r.opts.Topic, "error", err)
		return err
	}

	metrics.RelayPublishes.WithLabelValues("ok").Inc()
	r.logger.Info("Měření publikováno do cloudu", "topic", r.opts.Topic, "timestamp", reading.Timestamp)
	return nil
}

// Run publikuje hned (pokud už je co), potom každý Interval, dokud neskončí ctx.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	r.logger.Info("Zahajuji periodickou publikaci", "interval", r.opts.Interval.String(), "topic", r.opts.Topic)

	if _, ok := r.Latest(); ok {
		_ = r.Tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Periodická publikace zastavena")
			return
		case <-ticker.C:
			_ = r.Tick(ctx)
		}
	}
}
