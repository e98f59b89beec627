package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	ParcelDesk ParcelDeskConfig `yaml:"parceldesk"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	ShipmentUpdatedTopicName string `yaml:"shipment_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ParcelDeskConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	JWTSecret       string `yaml:"jwt_secret"`
	TokenTTLSeconds int    `yaml:"token_ttl_seconds"`

	ShipmentsCacheTTLSeconds int `yaml:"shipments_cache_ttl_seconds"`
	WSWriteTimeoutSeconds    int `yaml:"ws_write_timeout_seconds"`

	WorkerHTTPAddr                 string `yaml:"worker_http_addr"`
	WorkerReconcileIntervalSeconds int    `yaml:"worker_reconcile_interval_seconds"`
	WorkerInterCallDelaySeconds    int    `yaml:"worker_inter_call_delay_seconds"`
	WorkerRetryBackoffSeconds      int    `yaml:"worker_retry_backoff_seconds"`
	WorkerRateLimitPerMinute       int    `yaml:"worker_rate_limit_per_minute"`

	// "ship24" | "shipengine" | "fake"
	CarrierProvider   string `yaml:"carrier_provider"`
	CarrierBaseURL    string `yaml:"carrier_base_url"`
	Ship24APIKey      string `yaml:"ship24_api_key"`
	ShipEngineAPIKey  string `yaml:"shipengine_api_key"`

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
