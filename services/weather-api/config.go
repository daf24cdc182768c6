package main

import (
	"time"

	"weather-station/internal/config"
)

// Config: nastavení služby z ENV proměnných (12-Factor App).
type Config struct {
	HTTPPort string

	// Broker: MQTT_HOST, MQTT_PORT, MQTT_TOPIC... (viz config.LoadBroker)
	Broker config.Broker

	// ConnectOnStart: připojit se k brokeru hned při startu, ne až s prvním
	// requestem. Bez toho by se bez klientů nic neukládalo.
	ConnectOnStart bool

	// StoreURL: postgres://... nebo sqlite://<cesta>. Prázdné = bez historie.
	StoreURL string

	// ValkeyAddr: adresa Valkey pro zrcadlo posledního měření. Prázdné = vypnuto.
	ValkeyAddr string

	Heartbeat time.Duration

	LogLevel string
	LogMQTT  bool
}

func LoadConfig() (Config, error) {
	broker, err := config.LoadBroker("MQTT_", "local", config.BrokerDefaults{
		Host:  "mosquitto",
		Port:  1883,
		Topic: "vicenza/weather/data",
	})
	if err != nil {
		return Config{}, err
	}
	return Config{
		HTTPPort:       config.GetEnv("HTTP_PORT", "8080"),
		Broker:         broker,
		ConnectOnStart: config.Bool("MQTT_CONNECT_ON_START", true),
		StoreURL:       config.GetEnv("STORE_URL", "sqlite://data/weather.db"),
		ValkeyAddr:     config.GetEnv("VALKEY_ADDR", ""),
		Heartbeat:      config.Duration("HEARTBEAT_INTERVAL", 15*time.Second),
		LogLevel:       config.GetEnv("LOG_LEVEL", "info"),
		LogMQTT:        config.Bool("LOG_MQTT", false),
	}, nil
}
