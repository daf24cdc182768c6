// Package fanout rozesílá každé měření všem aktuálně přihlášeným odběratelům.
package fanout

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"weather-station/internal/telemetry"
)

// ErrUnsubscribe vrácená z Callbacku odhlásí odběratele.
// Je to jediný způsob, jak se odhlásit zevnitř callbacku: funkce vrácená
// ze Subscribe čeká na doběhnutí rozpracovaného doručení, takže zavolaná
// z vlastního callbacku by se zablokovala.
var ErrUnsubscribe = errors.New("fanout: unsubscribe")

// Callback dostane každé publikované měření.
// Nesmí blokovat a nesmí volat zpět do Hubu (Subscribe, Publish, unsubscribe).
type Callback func(telemetry.Reading) error

// subscriber: jeden odběratel. Vlastní zámek zajišťuje, že po návratu
// z unsubscribe už callback nikdy neproběhne.
type subscriber struct {
	id    uint64
	mu    sync.Mutex
	alive bool
	fn    Callback
}

// Hub je registr odběratelů.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*subscriber
}

// New vytvoří prázdný Hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[uint64]*subscriber),
	}
}

// Subscribe přihlásí callback a vrátí funkci pro odhlášení.
// Odhlášení lze volat opakovaně a z libovolné goroutiny.
func (h *Hub) Subscribe(fn Callback) func() {
	h.mu.Lock()
	h.nextID++
	s := &subscriber{id: h.nextID, alive: true, fn: fn}
	h.subs[s.id] = s
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.remove(s.id)

			// Počkáme na případně běžící doručení a zneplatníme odběratele.
			s.mu.Lock()
			s.alive = false
			s.mu.Unlock()
		})
	}
}

// Publish doručí měření všem odběratelům, kteří byli přihlášeni v okamžiku volání.
// Chyba nebo panika jednoho odběratele neovlivní ostatní.
func (h *Hub) Publish(r telemetry.Reading) {
	// Snapshot pod RLock, callbacky voláme až bez zámku registru.
	h.mu.RLock()
	snapshot := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	for _, s := range snapshot {
		err := s.deliver(r)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnsubscribe):
			h.remove(s.id)
		default:
			h.logger.Warn("Odběratel selhal", "error", err)
		}
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Len vrací počet přihlášených odběratelů.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *subscriber) deliver(r telemetry.Reading) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.alive {
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in subscriber: %v", p)
		}
		// Zámek stále držíme, další doručení už neproběhne.
		if errors.Is(err, ErrUnsubscribe) {
			s.alive = false
		}
	}()
	return s.fn(r)
}
