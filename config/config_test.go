package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  shipment_updated_topic_name: "shipment.updated"
redis:
  host: "localhost"
  port: 6379
parceldesk:
  http_addr: ":8080"
  worker_http_addr: ":8081"
  kafka_consumer_group: "parcel-api"
  jwt_secret: "dev-secret"
  token_ttl_seconds: 604800
  worker_reconcile_interval_seconds: 900
  worker_inter_call_delay_seconds: 2
  carrier_provider: "fake"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "shipment.updated", cfg.Kafka.ShipmentUpdatedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.ParcelDesk.HTTPAddr)
	require.Equal(t, 604800, cfg.ParcelDesk.TokenTTLSeconds)
	require.Equal(t, 900, cfg.ParcelDesk.WorkerReconcileIntervalSeconds)
	require.Equal(t, "fake", cfg.ParcelDesk.CarrierProvider)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
