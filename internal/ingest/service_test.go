package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"weather-station/internal/fanout"
	"weather-station/internal/mqttconn"
	"weather-station/internal/telemetry"
)

// mockBroker simuluje mqttconn.Connection.
type mockBroker struct {
	mu         sync.Mutex
	connects   int
	closes     int
	handlers   map[string]mqttconn.Handler
	connectErr error
	connected  bool
}

func newMockBroker() *mockBroker {
	return &mockBroker{handlers: make(map[string]mqttconn.Handler)}
}

func (m *mockBroker) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockBroker) OnMessage(topic string, _ byte, h mqttconn.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.handlers[topic]; dup {
		panic("handler registered twice for " + topic)
	}
	m.handlers[topic] = h
}

func (m *mockBroker) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockBroker) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.connected = false
}

func (m *mockBroker) deliver(topic string, payload string) {
	m.mu.Lock()
	h := m.handlers[topic]
	m.mu.Unlock()
	h(topic, []byte(payload))
}

type mockWriter struct {
	mu       sync.Mutex
	readings []telemetry.Reading
}

func (w *mockWriter) Enqueue(r telemetry.Reading) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.readings = append(w.readings, r)
	return true
}

var fixedNow = time.Unix(1_700_000_000, 0)

func newTestService(broker *mockBroker, writer Writer) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Deps{
		Broker: broker,
		Topic:  "weather/data",
		QoS:    0,
		Hub:    fanout.New(logger),
		Cache:  &Cache{},
		Writer: writer,
		Logger: logger,
		Now:    func() time.Time { return fixedNow },
	})
}

func TestService_EnsureConnectedIsIdempotent(t *testing.T) {
	broker := newMockBroker()
	svc := newTestService(broker, nil)

	for i := 0; i < 3; i++ {
		if err := svc.EnsureConnected(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(broker.handlers) != 1 {
		t.Errorf("expected one handler, got %d", len(broker.handlers))
	}
	if !svc.Connected() {
		t.Error("expected service to report connected")
	}
}

func TestService_EnsureConnectedPropagatesError(t *testing.T) {
	broker := newMockBroker()
	broker.connectErr = errors.New("refused")
	svc := newTestService(broker, nil)

	err := svc.EnsureConnected()
	if err == nil || !errors.Is(err, broker.connectErr) {
		t.Fatalf("expected wrapped connect error, got %v", err)
	}

	// Další request to zkusí znovu.
	broker.connectErr = nil
	if err := svc.EnsureConnected(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if broker.connects != 2 {
		t.Errorf("expected 2 connect attempts, got %d", broker.connects)
	}
}

func TestService_HandleMessage(t *testing.T) {
	broker := newMockBroker()
	writer := &mockWriter{}
	svc := newTestService(broker, writer)
	if err := svc.EnsureConnected(); err != nil {
		t.Fatal(err)
	}

	var got []telemetry.Reading
	svc.Subscribe(func(r telemetry.Reading) error {
		got = append(got, r)
		return nil
	})

	broker.deliver("weather/data", `{"temp_room": 21.5, "hum_room": "bad", "lux": 300}`)

	want := telemetry.Reading{TempRoom: 21.5, Lux: 300, Timestamp: fixedNow.Unix()}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("expected fan-out of %+v, got %+v", want, got)
	}
	if latest, ok := svc.Latest(); !ok || latest != want {
		t.Errorf("expected cached %+v, got %+v (ok=%v)", want, latest, ok)
	}
	if len(writer.readings) != 1 || writer.readings[0] != want {
		t.Errorf("expected persisted %+v, got %+v", want, writer.readings)
	}
}

func TestService_MalformedPayloadIsDropped(t *testing.T) {
	broker := newMockBroker()
	writer := &mockWriter{}
	svc := newTestService(broker, writer)
	if err := svc.EnsureConnected(); err != nil {
		t.Fatal(err)
	}

	var calls int
	svc.Subscribe(func(telemetry.Reading) error {
		calls++
		return nil
	})

	broker.deliver("weather/data", `not json`)

	if calls != 0 {
		t.Errorf("expected no fan-out, got %d", calls)
	}
	if _, ok := svc.Latest(); ok {
		t.Error("cache must stay empty")
	}
	if len(writer.readings) != 0 {
		t.Error("malformed payload must not be persisted")
	}
}

func TestService_PreservesArrivalOrder(t *testing.T) {
	broker := newMockBroker()
	svc := newTestService(broker, nil)
	if err := svc.EnsureConnected(); err != nil {
		t.Fatal(err)
	}

	var got []float64
	svc.Subscribe(func(r telemetry.Reading) error {
		got = append(got, r.Lux)
		return nil
	})

	broker.deliver("weather/data", `{"lux":1}`)
	broker.deliver("weather/data", `{"lux":2}`)
	broker.deliver("weather/data", `{"lux":3}`)

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", got)
	}
	if latest, _ := svc.Latest(); latest.Lux != 3 {
		t.Errorf("expected latest lux 3, got %v", latest.Lux)
	}
}

// Odběratel přihlášený během příjmu dostane každé měření buď ve snapshotu,
// nebo živě, ale nikdy obojí ani nic nevynechá.
func TestService_SubscribeWithSnapshotHasNoGapOrOverlap(t *testing.T) {
	const messages = 500
	const subscribers = 20

	broker := newMockBroker()
	svc := newTestService(broker, nil)
	if err := svc.EnsureConnected(); err != nil {
		t.Fatal(err)
	}

	type result struct {
		mu       sync.Mutex
		snapshot int64
		got      []int64
	}
	results := make([]*result, subscribers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= messages; i++ {
			broker.deliver("weather/data", `{"timestamp":`+strconv.Itoa(i)+`}`)
		}
	}()

	for n := 0; n < subscribers; n++ {
		res := &result{}
		results[n] = res
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.mu.Lock()
			defer res.mu.Unlock()
			snap, ok, _ := svc.SubscribeWithSnapshot(func(r telemetry.Reading) error {
				res.mu.Lock()
				res.got = append(res.got, r.Timestamp)
				res.mu.Unlock()
				return nil
			})
			if ok {
				res.snapshot = snap.Timestamp
			}
		}()
	}
	wg.Wait()

	for n, res := range results {
		res.mu.Lock()
		want := res.snapshot + 1
		for _, ts := range res.got {
			if ts != want {
				t.Fatalf("subscriber %d: snapshot %d, expected %d next, got %v", n, res.snapshot, want, res.got)
			}
			want++
		}
		if want != messages+1 {
			t.Errorf("subscriber %d: stream ended at %d, expected %d", n, want-1, messages)
		}
		res.mu.Unlock()
	}
}

func TestService_Shutdown(t *testing.T) {
	broker := newMockBroker()
	svc := newTestService(broker, nil)
	if err := svc.EnsureConnected(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := svc.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if broker.closes != 1 || svc.Connected() {
		t.Errorf("expected broker to be closed once, got %d", broker.closes)
	}
}

func TestCache(t *testing.T) {
	var c Cache
	if _, ok := c.Get(); ok {
		t.Fatal("empty cache must report no value")
	}

	c.Set(telemetry.Reading{Lux: 1})
	c.Set(telemetry.Reading{Lux: 2})

	r, ok := c.Get()
	if !ok || r.Lux != 2 {
		t.Errorf("expected last write to win, got %+v (ok=%v)", r, ok)
	}
}
