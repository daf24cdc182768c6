package main

import (
	"time"

	"weather-station/internal/config"
)

type Config struct {
	// Broker: MQTT_HOST, MQTT_PORT, MQTT_TOPIC...
	Broker config.Broker

	// Interval odesílání (např. "5s")
	Interval time.Duration

	LogLevel string
}

func LoadConfig() (Config, error) {
	broker, err := config.LoadBroker("MQTT_", "simulator", config.BrokerDefaults{
		Host:  "127.0.0.1",
		Port:  1883,
		Topic: "vicenza/weather/data",
	})
	if err != nil {
		return Config{}, err
	}
	return Config{
		Broker:   broker,
		Interval: config.Duration("SIM_INTERVAL", 5*time.Second),
		LogLevel: config.GetEnv("LOG_LEVEL", "info"),
	}, nil
}
