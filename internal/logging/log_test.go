package logging

import (
	"testing"

	"github.com/grizzly-loadtest/async-messaged/internal/config"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func setupTest() (log.Level, log.Formatter) {
	return log.GetLevel(), log.StandardLogger().Formatter
}

func teardownTest(level log.Level, formatter log.Formatter) {
	log.SetLevel(level)
	log.SetFormatter(formatter)
	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
}

func TestInitializeTextFormatter(t *testing.T) {
	level, formatter := setupTest()
	defer teardownTest(level, formatter)

	Initialize(config.LogConfig{Level: "info", Formatter: "text"})

	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
}

func TestInitializeJSONFormatter(t *testing.T) {
	level, formatter := setupTest()
	defer teardownTest(level, formatter)

	Initialize(config.LogConfig{Level: "debug", Formatter: "json"})

	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)
}

func TestInitializeInvalidLevelLeavesLevelUnchanged(t *testing.T) {
	level, formatter := setupTest()
	defer teardownTest(level, formatter)

	Initialize(config.LogConfig{Level: "not-a-level", Formatter: "text"})

	assert.Equal(t, level, log.GetLevel())
}

func TestInitializeNoLokiAddressSkipsHook(t *testing.T) {
	level, formatter := setupTest()
	defer teardownTest(level, formatter)

	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	Initialize(config.LogConfig{Level: "info", Formatter: "text"})

	assert.Empty(t, log.StandardLogger().Hooks)
}

func TestInitializeWithLokiAddressAddsHook(t *testing.T) {
	level, formatter := setupTest()
	defer teardownTest(level, formatter)

	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	Initialize(config.LogConfig{
		Level:     "info",
		Formatter: "json",
		Loki: config.LokiConfig{
			Address: "http://localhost:3100",
			Labels:  map[string]string{"app": "async-messaged-test"},
		},
	})

	assert.NotEmpty(t, log.StandardLogger().Hooks[log.InfoLevel])
}
