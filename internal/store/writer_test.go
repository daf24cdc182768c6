package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"weather-station/internal/telemetry"
)

// mockStore počítá inserty a volitelně selhává.
type mockStore struct {
	mu      sync.Mutex
	fail    error
	block   chan struct{}
	inserts []telemetry.Reading
	calls   int
}

func (m *mockStore) Insert(ctx context.Context, r telemetry.Reading) (telemetry.StoredReading, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return telemetry.StoredReading{}, m.fail
	}
	m.inserts = append(m.inserts, r)
	return telemetry.StoredReading{ID: int64(len(m.inserts)), Reading: r, CreatedAt: time.Now()}, nil
}

func (m *mockStore) Latest(context.Context) (telemetry.StoredReading, error) {
	return telemetry.StoredReading{}, ErrNotFound
}

func (m *mockStore) Range(context.Context, Query) ([]telemetry.StoredReading, error) {
	return nil, nil
}

func (m *mockStore) Close() error { return nil }

func (m *mockStore) snapshot() (calls int, inserts []telemetry.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, append([]telemetry.Reading(nil), m.inserts...)
}

type mockMirror struct {
	mu   sync.Mutex
	last telemetry.StoredReading
	sets int
}

func (m *mockMirror) Set(_ context.Context, sr telemetry.StoredReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = sr
	m.sets++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func closeWriter(tb testing.TB, w *Writer) {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		tb.Fatalf("close writer: %v", err)
	}
}

func TestWriter_PersistsAndMirrors(t *testing.T) {
	st := &mockStore{}
	mirror := &mockMirror{}
	w := NewWriter(st, mirror, WriterOptions{}, discardLogger())

	for i := 1; i <= 3; i++ {
		if !w.Enqueue(telemetry.Reading{Lux: float64(i), Timestamp: int64(i)}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	closeWriter(t, w)

	_, inserts := st.snapshot()
	if len(inserts) != 3 {
		t.Fatalf("expected 3 inserts after flush, got %d", len(inserts))
	}
	for i, r := range inserts {
		if r.Lux != float64(i+1) {
			t.Errorf("expected FIFO order, got %v at %d", r.Lux, i)
		}
	}

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	if mirror.sets != 3 || mirror.last.Lux != 3 {
		t.Errorf("expected mirror to hold the last reading, got %+v after %d sets", mirror.last, mirror.sets)
	}
}

func TestWriter_DropsWhenQueueFull(t *testing.T) {
	st := &mockStore{block: make(chan struct{})}
	w := NewWriter(st, nil, WriterOptions{QueueSize: 1}, discardLogger())

	// První měření si vezme worker a zasekne se na block, druhé zaplní frontu.
	w.Enqueue(telemetry.Reading{Timestamp: 1})
	deadline := time.Now().Add(5 * time.Second)
	for len(w.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !w.Enqueue(telemetry.Reading{Timestamp: 2}) {
		t.Fatal("second reading should fit into the queue")
	}
	if w.Enqueue(telemetry.Reading{Timestamp: 3}) {
		t.Error("expected reading to be dropped when queue is full")
	}

	close(st.block)
	closeWriter(t, w)

	_, inserts := st.snapshot()
	if len(inserts) != 2 {
		t.Errorf("expected 2 inserts, got %d", len(inserts))
	}
}

func TestWriter_BreakerOpensAfterFailures(t *testing.T) {
	st := &mockStore{fail: errors.New("db down")}
	w := NewWriter(st, nil, WriterOptions{BreakerFailures: 2, BreakerCooldown: time.Hour}, discardLogger())

	for i := 0; i < 5; i++ {
		w.Enqueue(telemetry.Reading{Timestamp: int64(i + 1)})
	}
	closeWriter(t, w)

	calls, _ := st.snapshot()
	if calls != 2 {
		t.Errorf("expected breaker to stop calls after 2 failures, got %d calls", calls)
	}
}

func TestWriter_EnqueueAfterClose(t *testing.T) {
	w := NewWriter(&mockStore{}, nil, WriterOptions{}, discardLogger())
	closeWriter(t, w)

	if w.Enqueue(telemetry.Reading{Timestamp: 1}) {
		t.Error("expected enqueue after close to be rejected")
	}
	// Opakované Close nepanikaří.
	closeWriter(t, w)
}
