package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "order.created", cfg.OrderCreatedTopic)
	assert.Equal(t, 3*time.Second, cfg.InventoryTimeout)
	assert.Equal(t, 30*time.Second, cfg.CheckoutLockTTL)
	assert.Empty(t, cfg.OtelEndpoint)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("INVENTORY_SERVICE_URL", "http://inv:8000/")
	t.Setenv("INVENTORY_TIMEOUT", "750ms")
	t.Setenv("AUDIT_WORKERS", "9")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "http://inv:8000", cfg.InventoryURL)
	assert.Equal(t, 750*time.Millisecond, cfg.InventoryTimeout)
	assert.Equal(t, 9, cfg.AuditWorkers)
}

func TestLoadRejectsLockShorterThanReservation(t *testing.T) {
	t.Setenv("INVENTORY_TIMEOUT", "10s")
	t.Setenv("CHECKOUT_LOCK_TTL", "5s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHECKOUT_LOCK_TTL")
}

func TestSplitCSV(t *testing.T) {
	assert.Empty(t, splitCSV(" , "))
	assert.Equal(t, []string{"a", "b"}, splitCSV("a,b"))
}
