package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parceldesk/parceldesk/config"
	"github.com/parceldesk/parceldesk/internal/api/httpapi"
	"github.com/parceldesk/parceldesk/internal/auth"
	"github.com/parceldesk/parceldesk/internal/broker/kafka"
	"github.com/parceldesk/parceldesk/internal/cache/rediscache"
	"github.com/parceldesk/parceldesk/internal/integrations/assistant/openaihttp"
	"github.com/parceldesk/parceldesk/internal/push"
	"github.com/parceldesk/parceldesk/internal/services/chat"
	"github.com/parceldesk/parceldesk/internal/services/shipments"
	"github.com/parceldesk/parceldesk/internal/services/users"
	"github.com/parceldesk/parceldesk/internal/storage/pgshipments"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	httpAddr := cfg.ParcelDesk.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.ParcelDesk.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "parcel-api"
	}
	topic := cfg.Kafka.ShipmentUpdatedTopicName
	if topic == "" {
		topic = "shipment.updated"
	}
	cacheTTL := time.Duration(cfg.ParcelDesk.ShipmentsCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	tokenTTL := time.Duration(cfg.ParcelDesk.TokenTTLSeconds) * time.Second
	if tokenTTL <= 0 {
		tokenTTL = auth.DefaultTokenTTL
	}
	wsWriteTimeout := time.Duration(cfg.ParcelDesk.WSWriteTimeoutSeconds) * time.Second

	st, err := pgshipments.New(connString(cfg))
	if err != nil {
		panic(err)
	}
	defer st.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	hasher := auth.NewHasher(auth.DefaultHashParams)
	signer := auth.NewTokenSigner(cfg.ParcelDesk.JWTSecret, tokenTTL)

	usersSvc := users.New(st, hasher, signer, pgshipments.ErrUsernameTaken, pgshipments.ErrEmailTaken)
	shipmentsSvc := shipments.New(st, newCarrierClient(cfg), producer, rc, topic, cacheTTL, pgshipments.ErrShipmentExists)
	assistantClient := openaihttp.New(cfg.ParcelDesk.OpenAIBaseURL, cfg.ParcelDesk.OpenAIAPIKey, cfg.ParcelDesk.OpenAIModel)
	chatSvc := chat.New(assistantClient, shipmentsSvc)

	hub := push.NewHub(wsWriteTimeout)
	srv := httpapi.NewServer(usersSvc, shipmentsSvc, chatSvc, signer, hub)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runParcelAPI(ctx, parcelAPIOpts{
		httpAddr:      httpAddr,
		topic:         topic,
		consumerGroup: consumerGroup,
	}, srv, shipmentsSvc, hub, consumer); err != nil && err != context.Canceled {
		panic(err)
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
