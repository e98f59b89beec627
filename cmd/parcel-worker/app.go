package main

import (
	"context"
	"fmt"
	"time"

	"github.com/parceldesk/parceldesk/config"
	"github.com/parceldesk/parceldesk/internal/broker/kafka"
	"github.com/parceldesk/parceldesk/internal/cache/rediscache"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier/fake"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier/ship24http"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier/shipenginehttp"
	"github.com/parceldesk/parceldesk/internal/services/reconciler"
	"github.com/parceldesk/parceldesk/internal/storage/pgshipments"
)

type workerFactories struct {
	newStorage       func(cfg *config.Config) (repo reconciler.Repository, closeFn func(), err error)
	newProducer      func(cfg *config.Config) reconciler.Producer
	newRateLimiter   func(cfg *config.Config) reconciler.RateLimiter
	newCarrierClient func(cfg *config.Config) carrier.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (reconciler.Repository, func(), error) {
			st, err := pgshipments.New(connString(cfg))
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) reconciler.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) reconciler.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newCarrierClient: newCarrierClient,
	}
}

func newCarrierClient(cfg *config.Config) carrier.Client {
	switch cfg.ParcelDesk.CarrierProvider {
	case "ship24":
		return ship24http.New(cfg.ParcelDesk.CarrierBaseURL, cfg.ParcelDesk.Ship24APIKey)
	case "shipengine":
		return shipenginehttp.New(cfg.ParcelDesk.CarrierBaseURL, cfg.ParcelDesk.ShipEngineAPIKey)
	default:
		return fake.New()
	}
}

func connString(cfg *config.Config) string {
	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
}

func RunParcelWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	topic := cfg.Kafka.ShipmentUpdatedTopicName
	if topic == "" {
		topic = "shipment.updated"
	}

	interval := time.Duration(cfg.ParcelDesk.WorkerReconcileIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 900 * time.Second
	}
	interCallDelay := time.Duration(cfg.ParcelDesk.WorkerInterCallDelaySeconds) * time.Second
	if interCallDelay <= 0 {
		interCallDelay = 2 * time.Second
	}
	retryBackoff := time.Duration(cfg.ParcelDesk.WorkerRetryBackoffSeconds) * time.Second
	if retryBackoff <= 0 {
		retryBackoff = 60 * time.Second
	}
	rlPerMin := int64(cfg.ParcelDesk.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)
	carrierClient := f.newCarrierClient(cfg)

	r := reconciler.New(repo, carrierClient, producer, rl, topic).
		WithSettings(interval, interCallDelay, retryBackoff, rlPerMin)

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:   cfg.ParcelDesk.WorkerHTTPAddr,
			reconciler: r,
			cfg:        cfg,
		})
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- r.Run(ctx) }()

	select {
	case <-ctx.Done():
		<-runErr
		return ctx.Err()
	case err := <-runErr:
		return err
	case err := <-httpErr:
		return err
	}
}
