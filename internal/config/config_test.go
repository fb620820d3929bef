package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLokiConfigEmpty(t *testing.T) {
	cfg := LokiConfig{}
	assert.Empty(t, cfg.Address)
	assert.Nil(t, cfg.Labels)
}

func TestLogConfigDefaults(t *testing.T) {
	cfg := LogConfig{
		Formatter: "text",
		Level:     "info",
		Loki: LokiConfig{
			Address: "http://localhost:3100",
			Labels:  map[string]string{"app": "async-messaged"},
		},
	}

	assert.Equal(t, "text", cfg.Formatter)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "async-messaged", cfg.Loki.Labels["app"])

	assert.Equal(t, defaults["log.formatter"], cfg.Formatter)
	assert.Equal(t, defaults["log.level"], cfg.Level)
	assert.Equal(t, defaults["log.loki.address"], cfg.Loki.Address)
}

func TestServiceConfig(t *testing.T) {
	cfg := ServiceConfig{}
	assert.Empty(t, cfg.ID)

	cfg.ID = "org.grizzly.AsyncMessaged"
	assert.Equal(t, "org.grizzly.AsyncMessaged", cfg.ID)
}

func TestLoadConfigWithDefaultsUsesDefaults(t *testing.T) {
	var cfg *Config
	err := LoadConfigWithDefaults("async-messaged-test-nonexistent", &cfg, defaults)
	assert.NoError(t, err)
	assert.Equal(t, "tcp://127.0.0.1:5554", cfg.FrontendEndpoint)
	assert.Equal(t, "inproc://workers", cfg.BackendEndpoint)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "org.grizzly.AsyncMessaged", cfg.Service.ID)
}
