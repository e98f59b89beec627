package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/parceldesk/parceldesk/config"
	"github.com/parceldesk/parceldesk/internal/api/httpapi"
	"github.com/parceldesk/parceldesk/internal/broker/messages"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier/fake"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier/ship24http"
	"github.com/parceldesk/parceldesk/internal/integrations/carrier/shipenginehttp"
	"github.com/parceldesk/parceldesk/internal/push"
	"github.com/parceldesk/parceldesk/internal/services/shipments"
)

type parcelAPIOpts struct {
	httpAddr string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
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

// runParcelAPI serves the JSON/WebSocket API and runs the change-event
// dispatcher: every event consumed from Kafka refreshes the owner's
// cached list and is fanned out to the owner's live sockets.
func runParcelAPI(ctx context.Context, opts parcelAPIOpts, srv *httpapi.Server, shipmentsSvc *shipments.Service, hub *push.Hub, consumer kafkaConsumer) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		_ = consumer.Consume(ctx, func(_key, value []byte) error {
			var m messages.ShipmentUpdated
			if err := json.Unmarshal(value, &m); err != nil {
				// Skip poison messages instead of wedging the group.
				slog.Error("decode change event", "error", err.Error())
				return nil
			}
			if err := shipmentsSvc.ApplyChangeEvent(ctx, m); err != nil {
				slog.Error("apply change event", "user_id", m.UserID, "error", err.Error())
			}
			hub.Publish(m.UserID, m)
			return nil
		})
	}()

	httpSrv := &http.Server{Handler: srv.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		_ = lis.Close()
		hub.Shutdown()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := httpSrv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
