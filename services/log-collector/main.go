package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"weather-station/internal/logging"
	"weather-station/internal/mqttconn"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Neplatná konfigurace", "error", err)
		os.Exit(1)
	}

	// Vlastní logy jen na stdout, jinak bychom sbírali sami sebe.
	logger := logging.New(os.Stdout, cfg.LogLevel)
	logger.Info("Startuji Log Collector", "dir", cfg.LogDir)

	collector, err := NewCollector(cfg.LogDir, logger)
	if err != nil {
		logger.Error("Nelze vytvořit adresář pro logy", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn := mqttconn.New(cfg.Broker.Conn, logger)
	conn.OnMessage(cfg.Broker.Topic, 0, collector.Handle)
	if err := conn.Connect(); err != nil {
		logger.Error("MQTT Connection failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("Poslouchám logy", "broker", conn.Broker(), "topic", cfg.Broker.Topic)
	<-ctx.Done()
	logger.Info("Vypínám Log Collector")
}
