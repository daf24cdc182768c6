package config

import (
	"fmt"

	"weather-station/internal/mqttconn"
)

// Broker je konfigurace jednoho MQTT spojení načtená s prefixem,
// např. "LOCAL_MQTT_" -> LOCAL_MQTT_HOST, LOCAL_MQTT_PORT...
type Broker struct {
	Conn  mqttconn.Options
	Topic string
}

// BrokerDefaults: výchozí hodnoty pro proměnné, které chybí.
type BrokerDefaults struct {
	Host  string
	Port  int
	Topic string
}

// LoadBroker načte spojení s daným prefixem. name označuje spojení v logech.
func LoadBroker(prefix, name string, def BrokerDefaults) (Broker, error) {
	b := Broker{
		Conn: mqttconn.Options{
			Name:                 name,
			Host:                 GetEnv(prefix+"HOST", def.Host),
			Port:                 Int(prefix+"PORT", def.Port),
			Username:             GetEnv(prefix+"USERNAME", ""),
			Password:             GetEnv(prefix+"PASSWORD", ""),
			ClientID:             GetEnv(prefix+"CLIENT_ID", ""),
			KeepAlive:            Duration(prefix+"KEEPALIVE", 0),
			ConnectTimeout:       Duration(prefix+"CONNECT_TIMEOUT", 0),
			ReconnectInterval:    Duration(prefix+"RECONNECT_INTERVAL", 0),
			MaxReconnectAttempts: Int(prefix+"MAX_RECONNECT_ATTEMPTS", 0),
			TLSInsecure:          Bool(prefix+"TLS_INSECURE", false),
		},
		Topic: GetEnv(prefix+"TOPIC", def.Topic),
	}

	if b.Conn.Host == "" {
		return Broker{}, fmt.Errorf("%sHOST is required", prefix)
	}
	if b.Conn.Port <= 0 || b.Conn.Port > 65535 {
		return Broker{}, fmt.Errorf("%sPORT out of range: %d", prefix, b.Conn.Port)
	}
	if b.Topic == "" {
		return Broker{}, fmt.Errorf("%sTOPIC must not be empty", prefix)
	}
	if b.Conn.MaxReconnectAttempts < 0 {
		return Broker{}, fmt.Errorf("%sMAX_RECONNECT_ATTEMPTS must not be negative", prefix)
	}
	return b, nil
}
