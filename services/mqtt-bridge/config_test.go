package main

import (
	"testing"
	"time"
)

func TestLoadConfig_RequiresCloudHost(t *testing.T) {
	t.Setenv("CLOUD_MQTT_HOST", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without CLOUD_MQTT_HOST")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CLOUD_MQTT_HOST", "broker.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Local.Conn.Host != "mosquitto" || cfg.Local.Conn.Port != 1883 {
		t.Errorf("unexpected local broker %s:%d", cfg.Local.Conn.Host, cfg.Local.Conn.Port)
	}
	if cfg.Cloud.Conn.Port != 8883 || cfg.Cloud.Conn.Name != "cloud" {
		t.Errorf("unexpected cloud broker %+v", cfg.Cloud.Conn)
	}
	if cfg.Cloud.Topic != cfg.Local.Topic {
		t.Errorf("cloud topic should default to local topic, got %q", cfg.Cloud.Topic)
	}
	if cfg.RelayInterval != 5*time.Minute || !cfg.Retain {
		t.Errorf("unexpected relay settings %s retain=%v", cfg.RelayInterval, cfg.Retain)
	}
	if cfg.StoreURL != "" {
		t.Errorf("store should be off by default, got %q", cfg.StoreURL)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("CLOUD_MQTT_HOST", "broker.example.com")
	t.Setenv("CLOUD_MQTT_PORT", "8884")
	t.Setenv("CLOUD_MQTT_TOPIC", "station/vicenza")
	t.Setenv("LOCAL_MQTT_TOPIC", "local/weather")
	t.Setenv("RELAY_INTERVAL", "30s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cloud.Conn.Port != 8884 || cfg.Cloud.Topic != "station/vicenza" {
		t.Errorf("unexpected cloud config %+v topic %q", cfg.Cloud.Conn, cfg.Cloud.Topic)
	}
	if cfg.Local.Topic != "local/weather" || cfg.RelayInterval != 30*time.Second {
		t.Errorf("unexpected overrides %q %s", cfg.Local.Topic, cfg.RelayInterval)
	}
}

func TestLoadConfig_RejectsTinyInterval(t *testing.T) {
	t.Setenv("CLOUD_MQTT_HOST", "broker.example.com")
	t.Setenv("RELAY_INTERVAL", "10ms")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for sub-second interval")
	}
}
