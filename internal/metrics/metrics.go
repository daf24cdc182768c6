// Package metrics drží Prometheus metriky sdílené všemi službami.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Zprávy přijaté z brokeru (před normalizací).
var MessagesReceived = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "weather_messages_received_total",
		Help: "Number of sensor messages received from the broker",
	},
)

// Zahozené zprávy podle důvodu (např. "parse").
var MessagesRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "weather_messages_rejected_total",
		Help: "Number of sensor messages dropped before fan-out",
	},
	[]string{"reason"},
)

// Výsledek zápisu do úložiště: ok, error, dropped, breaker_open.
var PersistResults = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "weather_persist_total",
		Help: "Outcome of persisting readings to the store",
	},
	[]string{"result"},
)

var LiveSubscribers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "weather_live_subscribers",
		Help: "Number of open live update streams",
	},
)

// 1 = připojeno, 0 = odpojeno. Label "broker" je jméno spojení (local, cloud...).
var BrokerConnected = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "weather_broker_connected",
		Help: "Whether the broker connection is currently up",
	},
	[]string{"broker"},
)

var BrokerGiveUps = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "weather_broker_give_ups_total",
		Help: "Number of times a broker connection exhausted its reconnect attempts",
	},
	[]string{"broker"},
)

// Výsledek periodické publikace do cloudu: ok, error, skipped_disconnected, skipped_empty.
var RelayPublishes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "weather_relay_publish_total",
		Help: "Outcome of relay ticks towards the cloud broker",
	},
	[]string{"result"},
)
