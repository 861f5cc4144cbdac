package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/models"
)

func memoryConfig() *config.Config {
	return &config.Config{
		AppName:                 "clover-test",
		LogLevel:                "error",
		StartupMaxAttempts:      1,
		ShutdownTimeoutSeconds:  1,
		StoreDriver:             config.StoreDriverMemory,
		TracingExporter:         "none",
		DedupeScoreThreshold:    60,
		DedupeDefaultWithinDays: 45,
	}
}

func TestApp_BackendsFollowConfig(t *testing.T) {
	cfg := memoryConfig()
	a, err := newApp(cfg)
	require.NoError(t, err)
	assert.Empty(t, a.backends())

	cfg.StoreDriver = config.StoreDriverPostgres
	cfg.DatabaseMigrateOnStart = true
	cfg.RedisEnabled = true
	cfg.KafkaEnabled = true
	assert.Equal(t, []string{"postgres", "migrations", "redis", "kafka"}, a.backends())
}

func TestApp_MemoryServiceStarts(t *testing.T) {
	a, err := newApp(memoryConfig())
	require.NoError(t, err)

	a.registerBackends()
	a.registerService()
	require.NoError(t, a.startup.Start(context.Background()))
	defer a.close(context.Background())

	require.NotNil(t, a.service)
	assert.True(t, a.startup.Ready())

	cfg, err := a.weights.GetDedupeConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.DefaultWithinDays)
}

func TestApp_Scan(t *testing.T) {
	a, err := newApp(memoryConfig())
	require.NoError(t, err)

	var out bytes.Buffer
	days := 400
	require.NoError(t, a.scan(context.Background(), &days, nil, true, &out))

	var resp models.FindDuplicatesResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, 365, resp.WithinDays)
	assert.Empty(t, resp.Groups)
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	cfg := memoryConfig()
	cfg.LogLevel = "loud"
	_, err := newApp(cfg)
	assert.Error(t, err)
}
