package main

import (
	"errors"
	"fmt"
	"time"

	"weather-station/internal/config"
)

// Config bridge služby. Lokální broker má prefix LOCAL_MQTT_,
// cloudový CLOUD_MQTT_ (CLOUD_MQTT_HOST je povinné).
type Config struct {
	Local config.Broker
	Cloud config.Broker

	// RelayInterval: jak často se poslední měření pošle do cloudu.
	RelayInterval time.Duration
	Retain        bool

	// StoreURL a ValkeyAddr jsou volitelné, prázdné = bez lokálního ukládání.
	StoreURL   string
	ValkeyAddr string

	// MetricsAddr: např. ":9102" pro /metrics. Prázdné = nevystavovat.
	MetricsAddr string

	LogLevel string
	LogMQTT  bool
}

func LoadConfig() (Config, error) {
	local, err := config.LoadBroker("LOCAL_MQTT_", "local", config.BrokerDefaults{
		Host:  "mosquitto",
		Port:  1883,
		Topic: "vicenza/weather/data",
	})
	if err != nil {
		return Config{}, err
	}

	if config.GetEnv("CLOUD_MQTT_HOST", "") == "" {
		return Config{}, errors.New("config: CLOUD_MQTT_HOST is required")
	}
	cloud, err := config.LoadBroker("CLOUD_MQTT_", "cloud", config.BrokerDefaults{
		Port:  8883,
		Topic: local.Topic,
	})
	if err != nil {
		return Config{}, err
	}

	interval := config.Duration("RELAY_INTERVAL", 5*time.Minute)
	if interval < time.Second {
		return Config{}, fmt.Errorf("config: RELAY_INTERVAL must be at least 1s, got %s", interval)
	}

	return Config{
		Local:         local,
		Cloud:         cloud,
		RelayInterval: interval,
		Retain:        config.Bool("RELAY_RETAIN", true),
		StoreURL:      config.GetEnv("STORE_URL", ""),
		ValkeyAddr:    config.GetEnv("VALKEY_ADDR", ""),
		MetricsAddr:   config.GetEnv("METRICS_ADDR", ""),
		LogLevel:      config.GetEnv("LOG_LEVEL", "info"),
		LogMQTT:       config.Bool("LOG_MQTT", false),
	}, nil
}
