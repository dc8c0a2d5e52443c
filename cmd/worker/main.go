package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"wacast/internal/broadcast"
	"wacast/internal/channel"
	"wacast/internal/config"
	"wacast/internal/httpserver"
	"wacast/internal/logging"
	"wacast/internal/msglog"
	"wacast/internal/observability"
	"wacast/internal/phone"
	sqsqueue "wacast/internal/queue/sqs"
	"wacast/internal/resolver"
	"wacast/internal/service"
	"wacast/internal/store/pg"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBPool.MaxConns,
		MinConns:          cfg.DBPool.MinConns,
		MaxConnLifetime:   cfg.DBPool.MaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPool.MaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPool.HealthCheckPeriod,
	})
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	sqsClient, err := sqsqueue.NewClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("worker sqs client init failed", "err", err)
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := db.Ping(startupCtx); err != nil {
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}
	if _, err := sqsClient.GetQueueAttributes(startupCtx, &sqs.GetQueueAttributesInput{
		QueueUrl:       &cfg.SQSQueueURL,
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	}); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	session := &channel.BridgeClient{
		BaseURL: cfg.BridgeBaseURL,
		HTTP:    &http.Client{Timeout: cfg.BridgeTimeout},
	}
	guard := channel.NewGuard(cfg.GuardWait, cfg.GuardPoll)

	limiter := rate.NewLimiter(rate.Limit(cfg.SendRPS), cfg.SendBurst)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bridge",
		MaxRequests: cfg.BreakerMaxReq,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
	})

	var sink msglog.Sink = msglog.Discard{}
	switch {
	case cfg.MessageLogFile != "":
		fileSink, err := msglog.OpenFileSink(cfg.MessageLogFile)
		if err != nil {
			slog.Error("message log open failed", "err", err, "path", cfg.MessageLogFile)
			os.Exit(1)
		}
		defer fileSink.Close()
		sink = fileSink
	case cfg.MessageLogDB:
		sink = &msglog.PGSink{DB: db}
	}

	runner := &broadcast.Runner{
		Dispatcher: &broadcast.Dispatcher{
			Guard:       guard,
			Limiter:     limiter,
			Breaker:     cb,
			MaxRetries:  cfg.MaxRetries,
			SendTimeout: cfg.SendTimeout,
		},
		Guard:        guard,
		BatchSize:    cfg.BatchSize,
		MessageDelay: cfg.MessageDelay,
		BatchDelay:   cfg.BatchDelay,
		Log:          sink,
	}

	svc := &service.BroadcastService{
		Store:    pg.New(db),
		Queue:    &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.SQSQueueURL},
		Resolver: resolver.New(phone.New(cfg.CountryCode, cfg.AddressSuffix)),
		Runner:   runner,
		Session:  session,
	}

	consumer := &sqsqueue.Consumer{
		SQS: sqsClient, QueueURL: cfg.SQSQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	healthMux := httpserver.New().Mux
	healthMux.HandleFunc("/healthz", httpserver.Healthz())
	healthMux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second,
		func(c context.Context) error { return db.Ping(c) },
		func(c context.Context) error {
			_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
				QueueUrl:       &cfg.SQSQueueURL,
				AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
			})
			return err
		},
	))
	healthSrv := &http.Server{Addr: ":" + cfg.Port, Handler: httpserver.Logging(healthMux)}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()
	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker starting poll", "queue_url", cfg.SQSQueueURL)
		pollErrCh <- consumer.Poll(ctx, func(ctx context.Context, job sqsqueue.BroadcastJob) (err error) {
			start := time.Now()
			slog.Info("broadcast job start", "broadcast_id", job.BroadcastID)
			defer func() {
				status := "ok"
				if err != nil {
					status = "error"
				}
				slog.Info("broadcast job finish",
					"broadcast_id", job.BroadcastID,
					"status", status,
					"duration", time.Since(start),
				)
			}()
			return svc.ExecuteBroadcast(ctx, job.BroadcastID)
		})
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && err != context.Canceled {
			slog.Error("worker poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case err := <-metricsErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	select {
	case <-pollErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("worker shutdown timeout waiting for poll loop")
	}
}
