package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrBadTopic: topic neodpovídá tvaru logs/<služba>[/...].
var ErrBadTopic = errors.New("log topic must look like logs/<service>")

// Collector zapisuje logovací zprávy z MQTT do souborů <dir>/<služba>.log.
type Collector struct {
	dir    string
	logger *slog.Logger

	// zápisy serializujeme, aby se řádky z různých zpráv neprolínaly
	mu sync.Mutex
}

func NewCollector(dir string, logger *slog.Logger) (*Collector, error) {
	// Permission 0755: vlastník může psát, ostatní číst.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &Collector{dir: dir, logger: logger}, nil
}

// Handle je mqttconn.Handler pro topic logs/#.
func (c *Collector) Handle(topic string, payload []byte) {
	service, err := serviceFromTopic(topic)
	if err != nil {
		c.logger.Warn("Ignoruji zprávu se špatným formátem topicu", "topic", topic)
		return
	}
	if err := c.Append(service, payload); err != nil {
		c.logger.Error("Chyba při zápisu do souboru", "service", service, "error", err)
	}
}

// Append připíše jeden řádek na konec souboru služby.
// Open-Write-Close při každém zápisu kvůli rotaci logů zvenku.
func (c *Collector) Append(service string, line []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	filename := filepath.Join(c.dir, service+".log")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	// slog řádky už newline mají, cizí payloady ne nutně
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, bytes.TrimRight(line, "\r\n")...)
	buf = append(buf, '\n')
	_, err = f.Write(buf)
	return err
}

// serviceFromTopic: "logs/weather-api" -> "weather-api".
// Název musí být bezpečný jako jméno souboru.
func serviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[0] != "logs" {
		return "", ErrBadTopic
	}
	name := parts[1]
	if name == "" || name == "." || name == ".." {
		return "", ErrBadTopic
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return "", ErrBadTopic
		}
	}
	return name, nil
}
