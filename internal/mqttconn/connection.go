// Package mqttconn spravuje jedno dlouhodobé spojení na MQTT broker:
// idempotentní připojení, automatický reconnect s omezeným počtem pokusů,
// obnovení odběrů po každém připojení a publikaci s timeoutem.
package mqttconn

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"weather-station/internal/metrics"
)

var (
	ErrNotConnected   = errors.New("mqtt: not connected")
	ErrPublishTimeout = errors.New("mqtt: publish timed out")
	ErrGaveUp         = errors.New("mqtt: reconnect attempts exhausted")
)

// Handler dostane topic a payload každé zprávy z odebíraného topicu.
// Volá se na goroutině klienta, proto nesmí blokovat.
type Handler func(topic string, payload []byte)

// Options popisuje jedno spojení. Nulové hodnoty doplní withDefaults.
type Options struct {
	Name     string // "local", "cloud"... jen pro logy a metriky
	Host     string
	Port     int
	Username string
	Password string

	// ClientID: prázdné = "<Name>-<8 hex znaků>"
	ClientID string

	KeepAlive         time.Duration
	ConnectTimeout    time.Duration
	ReconnectInterval time.Duration

	// MaxReconnectAttempts: 0 = zkoušet donekonečna.
	MaxReconnectAttempts int

	TLSInsecure    bool
	LogThrottle    time.Duration
	PublishTimeout time.Duration

	// OnGiveUp se zavolá jednou, když dojdou pokusy o připojení.
	OnGiveUp func(error)
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "mqtt"
	}
	if o.Port == 0 {
		o.Port = 1883
	}
	if o.ClientID == "" {
		o.ClientID = fmt.Sprintf("%s-%s", o.Name, uuid.New().String()[:8])
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 30 * time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = 2 * time.Second
	}
	if o.LogThrottle <= 0 {
		o.LogThrottle = 30 * time.Second
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}
	return o
}

type subscription struct {
	qos     byte
	handler Handler
}

// Connection obaluje paho klienta.
type Connection struct {
	opts   Options
	broker string
	logger *slog.Logger

	// Omezení opakovaných logů při výpadku brokeru.
	lostLog    *rate.Sometimes
	attemptLog *rate.Sometimes

	// mu chrání stav níže. Pod zámkem se nikdy neloguje: log může jít
	// přes MQTT tee zpět do tohoto spojení.
	mu       sync.Mutex
	client   mqtt.Client
	handlers map[string]subscription
	attempts int
}

// New připraví spojení, ale nepřipojuje se. To udělá až Connect.
func New(opts Options, logger *slog.Logger) *Connection {
	opts = opts.withDefaults()
	return &Connection{
		opts:       opts,
		broker:     BrokerURL(opts.Host, opts.Port),
		logger:     logger.With("broker", opts.Name),
		lostLog:    &rate.Sometimes{Interval: opts.LogThrottle},
		attemptLog: &rate.Sometimes{Interval: opts.LogThrottle},
		handlers:   make(map[string]subscription),
	}
}

// BrokerURL složí URL brokeru. Schéma se odvozuje od portu.
func BrokerURL(host string, port int) string {
	var scheme string
	switch port {
	case 8883:
		scheme = "ssl"
	case 8884:
		scheme = "wss"
	case 8080:
		scheme = "ws"
	default:
		scheme = "tcp"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// Broker vrací URL brokeru (diagnostika).
func (c *Connection) Broker() string {
	return c.broker
}

// Connect zahájí připojení. Pokud spojení existuje nebo se právě navazuje,
// nedělá nic. Na první CONNACK čeká nejvýše ConnectTimeout, potom klient
// zkouší dál na pozadí a Connect vrátí nil. Dojdou-li pokusy už během
// čekání, Connect také vrátí nil a chybu dostane jen OnGiveUp.
func (c *Connection) Connect() error {
	c.mu.Lock()
	if c.client != nil {
		c.mu.Unlock()
		return nil
	}
	client := mqtt.NewClient(c.clientOptions())
	c.client = client
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Info("Připojuji se k MQTT brokeru", "url", c.broker, "client_id", c.opts.ClientID)

	token := client.Connect()
	if !token.WaitTimeout(c.opts.ConnectTimeout) {
		c.logger.Warn("Broker zatím neodpověděl, zkouším dál na pozadí", "url", c.broker)
		return nil
	}
	if err := token.Error(); err != nil {
		c.mu.Lock()
		gaveUp := c.client != client
		if !gaveUp {
			c.client = nil
		}
		c.mu.Unlock()

		// Vyčerpání pokusů už ohlásil giveUp přes OnGiveUp.
		if gaveUp {
			return nil
		}
		return fmt.Errorf("connect %s: %w", c.broker, err)
	}
	return nil
}

// OnMessage zaregistruje handler pro topic. Odběr se obnoví po každém
// (re)connectu. Na jeden topic připadá jeden handler, novější přepíše starší.
func (c *Connection) OnMessage(topic string, qos byte, h Handler) {
	sub := subscription{qos: qos, handler: h}

	c.mu.Lock()
	c.handlers[topic] = sub
	client := c.client
	c.mu.Unlock()

	if client != nil && client.IsConnectionOpen() {
		c.subscribe(client, topic, sub)
	}
}

// Publish odešle zprávu a počká na potvrzení nejvýše PublishTimeout.
func (c *Connection) Publish(topic string, payload []byte, qos byte, retain bool) error {
	client := c.current()
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := client.Publish(topic, qos, retain, payload)
	if !token.WaitTimeout(c.opts.PublishTimeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishNoWait odešle zprávu bez čekání na potvrzení (fire-and-forget).
func (c *Connection) PublishNoWait(topic string, payload []byte, qos byte) error {
	client := c.current()
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}
	client.Publish(topic, qos, false, payload)
	return nil
}

// IsConnected: true jen pokud je spojení právě otevřené.
func (c *Connection) IsConnected() bool {
	client := c.current()
	return client != nil && client.IsConnectionOpen()
}

// Close ukončí spojení. Další Connect začne úplně od začátku.
// Registrované handlery zůstávají.
func (c *Connection) Close() {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.attempts = 0
	c.mu.Unlock()

	if client == nil {
		return
	}
	client.Disconnect(250)
	metrics.BrokerConnected.WithLabelValues(c.opts.Name).Set(0)
	c.logger.Info("Odpojeno od MQTT brokeru", "url", c.broker)
}

func (c *Connection) current() mqtt.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

func (c *Connection) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(c.broker).
		SetClientID(c.opts.ClientID).
		SetKeepAlive(c.opts.KeepAlive).
		SetConnectTimeout(c.opts.ConnectTimeout).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(c.opts.ReconnectInterval).
		SetMaxReconnectInterval(c.opts.ReconnectInterval).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetConnectionAttemptHandler(c.onConnectionAttempt)

	if c.opts.Username != "" {
		opts.SetUsername(c.opts.Username)
		opts.SetPassword(c.opts.Password)
	}
	if strings.HasPrefix(c.broker, "ssl://") || strings.HasPrefix(c.broker, "wss://") {
		opts.SetTLSConfig(&tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: c.opts.TLSInsecure, //nolint:gosec // jen na výslovné přání (TLS_INSECURE)
		})
	}
	return opts
}

// onConnect běží po každém úspěšném CONNACK (i po reconnectu).
func (c *Connection) onConnect(client mqtt.Client) {
	c.mu.Lock()
	c.attempts = 0
	subs := make(map[string]subscription, len(c.handlers))
	for topic, sub := range c.handlers {
		subs[topic] = sub
	}
	c.mu.Unlock()

	metrics.BrokerConnected.WithLabelValues(c.opts.Name).Set(1)
	c.logger.Info("Připojeno k MQTT brokeru", "url", c.broker)

	// Clean session: po každém připojení musíme odběry obnovit.
	for topic, sub := range subs {
		c.subscribe(client, topic, sub)
	}
}

func (c *Connection) onConnectionLost(_ mqtt.Client, err error) {
	metrics.BrokerConnected.WithLabelValues(c.opts.Name).Set(0)
	c.lostLog.Do(func() {
		c.logger.Warn("Spojení s MQTT brokerem ztraceno", "url", c.broker, "error", err)
	})
}

// onConnectionAttempt počítá pokusy od posledního úspěšného připojení.
func (c *Connection) onConnectionAttempt(_ *url.URL, tlsCfg *tls.Config) *tls.Config {
	c.mu.Lock()
	c.attempts++
	n := c.attempts
	client := c.client
	c.mu.Unlock()

	limit := c.opts.MaxReconnectAttempts
	if limit > 0 && n > limit {
		go c.giveUp(client, n-1)
		return tlsCfg
	}
	if n > 1 {
		c.attemptLog.Do(func() {
			c.logger.Info("Zkouším se znovu připojit", "url", c.broker, "attempt", n)
		})
	}
	return tlsCfg
}

// giveUp zruší klienta po vyčerpání pokusů. Proběhne nejvýše jednou za klienta.
func (c *Connection) giveUp(client mqtt.Client, failed int) {
	c.mu.Lock()
	if client == nil || c.client != client {
		c.mu.Unlock()
		return
	}
	c.client = nil
	c.attempts = 0
	c.mu.Unlock()

	err := fmt.Errorf("%w: %d failed attempts to %s", ErrGaveUp, failed, c.broker)
	metrics.BrokerConnected.WithLabelValues(c.opts.Name).Set(0)
	metrics.BrokerGiveUps.WithLabelValues(c.opts.Name).Inc()
	c.logger.Error("Vzdávám připojení k MQTT brokeru", "error", err)

	if c.opts.OnGiveUp != nil {
		c.opts.OnGiveUp(err)
	}
	client.Disconnect(0)
}

func (c *Connection) subscribe(client mqtt.Client, topic string, sub subscription) {
	token := client.Subscribe(topic, sub.qos, func(_ mqtt.Client, msg mqtt.Message) {
		sub.handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.opts.ConnectTimeout) {
		c.logger.Warn("Subscribe nepotvrzen včas", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		c.logger.Error("Subscribe selhal", "topic", topic, "error", err)
		return
	}
	c.logger.Info("Poslouchám na topicu", "topic", topic, "qos", sub.qos)
}
