package main

import (
	"weather-station/internal/config"
)

// Config drží nastavení pro službu Log Collector.
type Config struct {
	// Broker: MQTT_HOST, MQTT_PORT... MQTT_TOPIC je topic logů (výchozí "logs/#").
	Broker config.Broker

	// LogDir: adresář pro soubory s logy. V Dockeru typicky namapovaný volume.
	LogDir string

	LogLevel string
}

func LoadConfig() (Config, error) {
	broker, err := config.LoadBroker("MQTT_", "log-collector", config.BrokerDefaults{
		Host:  "mosquitto",
		Port:  1883,
		Topic: "logs/#",
	})
	if err != nil {
		return Config{}, err
	}
	return Config{
		Broker:   broker,
		LogDir:   config.GetEnv("LOG_DIR", "/var/log/weather-station"),
		LogLevel: config.GetEnv("LOG_LEVEL", "info"),
	}, nil
}
