// Package ingest přijímá měření z MQTT brokeru, drží poslední hodnotu
// a rozesílá každé měření živým odběratelům.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"weather-station/internal/fanout"
	"weather-station/internal/metrics"
	"weather-station/internal/mqttconn"
	"weather-station/internal/telemetry"
)

// Broker je část mqttconn.Connection, kterou služba potřebuje.
type Broker interface {
	Connect() error
	OnMessage(topic string, qos byte, h mqttconn.Handler)
	IsConnected() bool
	Close()
}

// Writer ukládá měření na pozadí. Enqueue nesmí blokovat.
type Writer interface {
	Enqueue(r telemetry.Reading) bool
}

// Deps: závislosti služby. Writer je volitelný (nil = bez ukládání).
type Deps struct {
	Broker Broker
	Topic  string
	QoS    byte
	Hub    *fanout.Hub
	Cache  *Cache
	Writer Writer
	Logger *slog.Logger

	// Now: zdroj času pro chybějící timestamp (testy). Výchozí time.Now.
	Now func() time.Time
}

// Service: jedna instance vlastní jeden odběr jednoho topicu.
type Service struct {
	deps Deps

	registerOnce sync.Once

	// delivery řadí zápis do cache + rozeslání proti SubscribeWithSnapshot.
	delivery sync.Mutex
}

func New(deps Deps) *Service {
	if deps.Hub == nil {
		deps.Hub = fanout.New(deps.Logger)
	}
	if deps.Cache == nil {
		deps.Cache = &Cache{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

// EnsureConnected je idempotentní bootstrap volaný z každého requestu.
// Handler topicu se registruje jen jednou, Connect je no-op, pokud spojení
// už existuje nebo se navazuje.
func (s *Service) EnsureConnected() error {
	s.registerOnce.Do(func() {
		s.deps.Broker.OnMessage(s.deps.Topic, s.deps.QoS, s.HandleMessage)
	})
	if err := s.deps.Broker.Connect(); err != nil {
		return fmt.Errorf("ingest bootstrap: %w", err)
	}
	return nil
}

// HandleMessage zpracuje jednu zprávu z brokeru:
// normalizace -> uložení (fire-and-forget) -> cache -> rozeslání.
func (s *Service) HandleMessage(topic string, payload []byte) {
	metrics.MessagesReceived.Inc()

	r, missing, err := telemetry.Parse(payload, s.deps.Now())
	if err != nil {
		metrics.MessagesRejected.WithLabelValues("parse").Inc()
		s.deps.Logger.Warn("Zpráva odmítnuta", "topic", topic, "důvod", err)
		return
	}
	if len(missing) > 0 {
		s.deps.Logger.Debug("Doplněny výchozí hodnoty", "topic", topic, "fields", missing)
	}

	if s.deps.Writer != nil {
		s.deps.Writer.Enqueue(r)
	}

	s.delivery.Lock()
	s.deps.Cache.Set(r)
	s.deps.Hub.Publish(r)
	s.delivery.Unlock()
}

// Latest vrací poslední měření z cache.
func (s *Service) Latest() (telemetry.Reading, bool) {
	return s.deps.Cache.Get()
}

// Subscribe přihlásí odběratele budoucích měření.
func (s *Service) Subscribe(fn fanout.Callback) func() {
	return s.deps.Hub.Subscribe(fn)
}

// SubscribeWithSnapshot vrátí poslední měření a zároveň přihlásí fn.
// Každé další měření dostane fn právě jednou a žádné z nich není
// obsažené ve snapshotu.
func (s *Service) SubscribeWithSnapshot(fn fanout.Callback) (telemetry.Reading, bool, func()) {
	s.delivery.Lock()
	defer s.delivery.Unlock()

	snapshot, ok := s.deps.Cache.Get()
	return snapshot, ok, s.deps.Hub.Subscribe(fn)
}

func (s *Service) Subscribers() int {
	return s.deps.Hub.Len()
}

func (s *Service) Connected() bool {
	return s.deps.Broker.IsConnected()
}

// Shutdown ukončí spojení s brokerem. Kontext omezuje dobu čekání.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.deps.Broker.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ingest shutdown: %w", ctx.Err())
	}
}
