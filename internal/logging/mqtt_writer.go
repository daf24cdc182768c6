package logging

import (
	"fmt"
	"sync"
)

// Publisher je spojení, přes které logy odcházejí (mqttconn.Connection).
type Publisher interface {
	PublishNoWait(topic string, payload []byte, qos byte) error
}

// MqttLogWriter implementuje io.Writer. Každý zapsaný řádek pošle do MQTT
// s QoS 0 bez čekání na potvrzení. Když spojení nežije, řádek se zahodí.
type MqttLogWriter struct {
	topic string

	mu  sync.RWMutex
	pub Publisher
}

// NewMqttLogWriter: topic bude "logs/<serviceName>". pub může být nil
// a připojit se později přes Attach (spojení samo potřebuje logger).
func NewMqttLogWriter(pub Publisher, serviceName string) *MqttLogWriter {
	return &MqttLogWriter{
		pub:   pub,
		topic: fmt.Sprintf("logs/%s", serviceName),
	}
}

// Attach nastaví spojení, přes které se logy posílají.
func (w *MqttLogWriter) Attach(pub Publisher) {
	w.mu.Lock()
	w.pub = pub
	w.mu.Unlock()
}

func (w *MqttLogWriter) Topic() string {
	return w.topic
}

// Write nikdy nevrací chybu, aby io.MultiWriter nepřestal psát na stdout.
func (w *MqttLogWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	pub := w.pub
	w.mu.RUnlock()
	if pub == nil {
		return len(p), nil
	}

	// slog buffer po návratu znovu použije, proto kopie.
	payload := make([]byte, len(p))
	copy(payload, p)

	_ = pub.PublishNoWait(w.topic, payload, 0)
	return len(p), nil
}
