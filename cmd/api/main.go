package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wacast/internal/config"
	"wacast/internal/httpserver"
	"wacast/internal/importer"
	"wacast/internal/logging"
	"wacast/internal/observability"
	"wacast/internal/phone"
	sqsqueue "wacast/internal/queue/sqs"
	"wacast/internal/resolver"
	"wacast/internal/service"
	"wacast/internal/store/pg"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBPool.MaxConns,
		MinConns:          cfg.DBPool.MinConns,
		MaxConnLifetime:   cfg.DBPool.MaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPool.MaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPool.HealthCheckPeriod,
	})
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	sqsClient, err := sqsqueue.NewClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("api sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	svc := &service.BroadcastService{
		Store:    pg.New(db),
		Queue:    &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.SQSQueueURL},
		Resolver: resolver.New(phone.New(cfg.CountryCode, cfg.AddressSuffix)),
	}

	s := httpserver.New()
	api := &httpserver.API{
		Svc:            svc,
		Rows:           &importer.CSVReader{},
		MaxImportBytes: cfg.MaxImportBytes,
	}
	api.Register(s.Mux)

	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(ctx context.Context) error {
		return db.Ping(ctx)
	}))
	s.Mux.Use(httpserver.Metrics(observability.APIRequests))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.Logging(s.Mux),
	}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}

	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("api metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("api shutdown", "signal", sig.String())
		case err := <-metricsErrCh:
			if err != nil && err != http.ErrServerClosed {
				slog.Error("api metrics server failed", "err", err)
			}
		}
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}
