package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"weather-station/internal/bridge"
	"weather-station/internal/logging"
	"weather-station/internal/mqttconn"
	"weather-station/internal/store"
)

const serviceName = "mqtt-bridge"

func main() {
	if err := run(); err != nil {
		slog.Error("Bridge skončil s chybou", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	// Logy jdou volitelně do lokálního brokeru (logs/mqtt-bridge).
	mqttLog := logging.NewMqttLogWriter(nil, serviceName)
	var out io.Writer = os.Stdout
	if cfg.LogMQTT {
		out = io.MultiWriter(os.Stdout, mqttLog)
	}
	logger := logging.New(out, cfg.LogLevel)
	slog.SetDefault(logger)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(sigCtx)
	defer cancel(nil)

	// 1. Spojení. Když cloud vyčerpá pokusy, bridge nemá smysl a končí.
	cloudOpts := cfg.Cloud.Conn
	cloudOpts.OnGiveUp = func(err error) {
		cancel(fmt.Errorf("cloud broker: %w", err))
	}
	cloud := mqttconn.New(cloudOpts, logger)

	localOpts := cfg.Local.Conn
	localOpts.OnGiveUp = func(err error) {
		cancel(fmt.Errorf("local broker: %w", err))
	}
	local := mqttconn.New(localOpts, logger)
	if cfg.LogMQTT {
		mqttLog.Attach(local)
	}

	// 2. Volitelné lokální ukládání
	var writer *store.Writer
	if cfg.StoreURL != "" {
		st, err := store.Open(ctx, cfg.StoreURL)
		if err != nil {
			return err
		}
		defer st.Close()

		var mirror store.Mirror
		if cfg.ValkeyAddr != "" {
			m, err := store.NewLatestMirror(ctx, cfg.ValkeyAddr)
			if err != nil {
				logger.Warn("Valkey nedostupné, zrcadlo vypnuto", "addr", cfg.ValkeyAddr, "error", err)
			} else {
				defer m.Close()
				mirror = m
			}
		}
		writer = store.NewWriter(st, mirror, store.WriterOptions{}, logger)
	}

	// 3. Relay
	var relayWriter bridge.Writer
	if writer != nil {
		relayWriter = writer
	}
	relay := bridge.New(bridge.Options{
		Topic:    cfg.Cloud.Topic,
		Interval: cfg.RelayInterval,
		QoS:      1,
		Retain:   cfg.Retain,
	}, cloud, relayWriter, logger)

	local.OnMessage(cfg.Local.Topic, 1, relay.Accept)

	logger.Info("Startuji MQTT Bridge",
		"local", local.Broker(),
		"cloud", cloud.Broker(),
		"local_topic", cfg.Local.Topic,
		"cloud_topic", cfg.Cloud.Topic,
		"interval", cfg.RelayInterval.String(),
		"store", writer != nil,
	)

	if err := cloud.Connect(); err != nil {
		return fmt.Errorf("cloud connect: %w", err)
	}
	if err := local.Connect(); err != nil {
		cloud.Close()
		return fmt.Errorf("local connect: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		relay.Run(gctx)
		return nil
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	runErr := g.Wait()

	// 4. Úklid: ticker už stojí, zavřeme spojení a dopíšeme frontu.
	logger.Info("Ukončuji bridge")
	local.Close()
	cloud.Close()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if writer != nil {
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelFlush()
		if err := writer.Close(flushCtx); err != nil {
			errs = append(errs, fmt.Errorf("flush writer: %w", err))
		}
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		errs = append(errs, cause)
	}
	return errors.Join(errs...)
}
