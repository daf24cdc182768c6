package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weather-station/internal/logging"
	"weather-station/internal/mqttconn"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Neplatná konfigurace", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn := mqttconn.New(cfg.Broker.Conn, logger)
	if err := conn.Connect(); err != nil {
		logger.Error("Selhalo připojení k MQTT", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("Startuji Sensor Simulator",
		"broker", conn.Broker(),
		"topic", cfg.Broker.Topic,
		"interval", cfg.Interval.String(),
	)

	gen := NewGenerator(uint64(time.Now().UnixNano()))
	count := 0

	publish := func(now time.Time) {
		if !conn.IsConnected() {
			logger.Warn("Broker není připojen, čekám")
			return
		}
		reading := gen.Next(now)
		payload, err := json.Marshal(reading)
		if err != nil {
			logger.Error("Chyba serializace", "error", err)
			return
		}
		if err := conn.Publish(cfg.Broker.Topic, payload, 1, false); err != nil {
			logger.Error("Publikace selhala", "error", err)
			return
		}
		count++
		logger.Info("Měření odesláno",
			"n", count,
			"temp_room", reading.TempRoom,
			"hum_room", reading.HumRoom,
			"temp_out", reading.TempOut,
			"lux", reading.Lux,
			"ldr_raw", reading.LDRRaw,
		)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	publish(time.Now())
	for {
		select {
		case <-ctx.Done():
			logger.Info("Přijat signál ukončení, vypínám...", "odesláno", count)
			return
		case t := <-ticker.C:
			publish(t)
		}
	}
}
