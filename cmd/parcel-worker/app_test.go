package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parceldesk/parceldesk/config"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier/fake"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier/ship24http"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier/shipenginehttp"
	"github.com/parceldesk/parceldesk/internal/models"
	"github.com/parceldesk/parceldesk/internal/services/reconciler"
)

type fakeRepo struct{}

func (r *fakeRepo) ListActiveShipments(ctx context.Context) ([]*models.Shipment, error) {
	return []*models.Shipment{}, nil
}

func (r *fakeRepo) UpdateShipment(ctx context.Context, sh *models.Shipment) error { return nil }

type noopProducer struct{}

func (p noopProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	return nil
}

func TestNewCarrierClientSelection(t *testing.T) {
	c := newCarrierClient(&config.Config{
		ParcelDesk: config.ParcelDeskConfig{CarrierProvider: "ship24", Ship24APIKey: "k"},
	})
	_, ok := c.(*ship24http.Client)
	require.True(t, ok)

	c = newCarrierClient(&config.Config{
		ParcelDesk: config.ParcelDeskConfig{CarrierProvider: "shipengine", ShipEngineAPIKey: "k"},
	})
	_, ok = c.(*shipenginehttp.Client)
	require.True(t, ok)

	c = newCarrierClient(&config.Config{})
	_, ok = c.(*fake.FakeClient)
	require.True(t, ok)
}

func TestDefaultWorkerFactoriesProducerAndRateLimiterNonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newProducer(cfg))
	require.NotNil(t, f.newRateLimiter(cfg))
}

func TestRunParcelWorkerContextCanceled(t *testing.T) {
	calledClose := false

	f := workerFactories{
		newStorage: func(cfg *config.Config) (reconciler.Repository, func(), error) {
			return &fakeRepo{}, func() { calledClose = true }, nil
		},
		newProducer: func(cfg *config.Config) reconciler.Producer {
			return noopProducer{}
		},
		newRateLimiter: func(cfg *config.Config) reconciler.RateLimiter {
			return nil
		},
		newCarrierClient: func(cfg *config.Config) carrier.Client {
			return fake.New()
		},
	}

	cfg := &config.Config{
		Kafka: config.KafkaConfig{ShipmentUpdatedTopicName: "t"},
		ParcelDesk: config.ParcelDeskConfig{
			WorkerReconcileIntervalSeconds: 1,
			WorkerHTTPAddr:                 "127.0.0.1:0",
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunParcelWorker(ctx, cfg, f)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}
