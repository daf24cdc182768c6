package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"weather-station/internal/fanout"
	"weather-station/internal/ingest"
	"weather-station/internal/logging"
	"weather-station/internal/mqttconn"
	"weather-station/internal/sse"
	"weather-station/internal/store"
)

const serviceName = "weather-api"

func main() {
	if err := run(); err != nil {
		slog.Error("Služba skončila s chybou", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Konfigurace
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	// 2. Logování: JSON na stdout, volitelně i do MQTT (logs/weather-api).
	// Publisher se připojí až po vytvoření spojení.
	mqttLog := logging.NewMqttLogWriter(nil, serviceName)
	var out io.Writer = os.Stdout
	if cfg.LogMQTT {
		out = io.MultiWriter(os.Stdout, mqttLog)
	}
	logger := logging.New(out, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. MQTT spojení. Když dojdou pokusy, jen logujeme,
	// další request zkusí spojení navázat znovu.
	connOpts := cfg.Broker.Conn
	connOpts.OnGiveUp = func(err error) {
		logger.Error("MQTT broker nedostupný, čekám na další request", "error", err)
	}
	conn := mqttconn.New(connOpts, logger)
	if cfg.LogMQTT {
		mqttLog.Attach(conn)
	}

	// 4. Úložiště (volitelné)
	var (
		st     store.ReadingStore
		mirror *store.LatestMirror
		writer *store.Writer
	)
	if cfg.StoreURL != "" {
		st, err = store.Open(ctx, cfg.StoreURL)
		if err != nil {
			return err
		}
		defer st.Close()
	} else {
		logger.Warn("STORE_URL není nastaveno, historie vypnuta")
	}

	if cfg.ValkeyAddr != "" {
		mirror, err = store.NewLatestMirror(ctx, cfg.ValkeyAddr)
		if err != nil {
			// Valkey není nutné, poslední měření máme i v paměti.
			logger.Warn("Valkey nedostupné, zrcadlo vypnuto", "addr", cfg.ValkeyAddr, "error", err)
			mirror = nil
		} else {
			defer mirror.Close()
		}
	}

	if st != nil {
		var m store.Mirror
		if mirror != nil {
			m = mirror
		}
		writer = store.NewWriter(st, m, store.WriterOptions{}, logger)
	}

	// 5. Wiring
	deps := ingest.Deps{
		Broker: conn,
		Topic:  cfg.Broker.Topic,
		QoS:    1,
		Hub:    fanout.New(logger),
		Cache:  &ingest.Cache{},
		Logger: logger,
	}
	if writer != nil {
		deps.Writer = writer
	}
	ingestSvc := ingest.New(deps)

	var mirrorReader MirrorReader
	if mirror != nil {
		mirrorReader = mirror
	}
	svc := NewService(ingestSvc, mirrorReader, st)
	stream := sse.NewHandler(ingestSvc, sse.Options{Heartbeat: cfg.Heartbeat}, logger)
	api := NewAPIHandler(svc, ingestSvc, stream, conn.Broker(), cfg.Broker.Topic, logger)

	if cfg.ConnectOnStart {
		if err := ingestSvc.EnsureConnected(); err != nil {
			logger.Warn("Připojení k brokeru při startu selhalo", "error", err)
		}
	}

	// 6. HTTP server. BaseContext zajistí, že SSE spojení skončí se signálem.
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info("Startuji Weather API",
		"port", cfg.HTTPPort,
		"broker", conn.Broker(),
		"topic", cfg.Broker.Topic,
		"store", st != nil,
		"mirror", mirror != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server naslouchá", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Ukončuji službu")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := ingestSvc.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if writer != nil {
			if err := writer.Close(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
