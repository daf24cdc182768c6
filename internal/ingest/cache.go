package ingest

import (
	"sync"

	"weather-station/internal/telemetry"
)

// Cache drží poslední přijaté měření. Nové vždy přepíše staré.
type Cache struct {
	mu     sync.RWMutex
	latest telemetry.Reading
	ok     bool
}

func (c *Cache) Set(r telemetry.Reading) {
	c.mu.Lock()
	c.latest = r
	c.ok = true
	c.mu.Unlock()
}

// Get vrací poslední měření; false, pokud ještě žádné nepřišlo.
func (c *Cache) Get() (telemetry.Reading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.ok
}
