// Package config loads async-messaged's runtime configuration the way the
// rest of the fleet does: a viper-backed loader with layered defaults,
// config file discovery and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// LokiConfig carries the optional Grafana Loki shipping target for logs.
type LokiConfig struct {
	Address string            `mapstructure:"address"`
	Labels  map[string]string `mapstructure:"labels"`
}

// LogConfig controls the logrus formatter, level and Loki hook.
type LogConfig struct {
	Formatter string     `mapstructure:"formatter"`
	Level     string     `mapstructure:"level"`
	Loki      LokiConfig `mapstructure:"loki"`
}

// ServiceConfig identifies this daemon instance for logging and MMI-style
// introspection.
type ServiceConfig struct {
	ID string `mapstructure:"id"`
}

// Config is the full async-messaged configuration.
type Config struct {
	Env               string        `mapstructure:"env"`
	FrontendEndpoint  string        `mapstructure:"frontend-endpoint"`
	BackendEndpoint   string        `mapstructure:"backend-endpoint"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat-interval"`
	DefaultWait       int           `mapstructure:"default-message-wait"`
	Log               LogConfig     `mapstructure:"log"`
	Service           ServiceConfig `mapstructure:"service"`
}

var (
	lock     = &sync.Mutex{}
	instance *Config
)

var defaults = map[string]interface{}{
	"env":                  "development",
	"frontend-endpoint":    "tcp://127.0.0.1:5554",
	"backend-endpoint":     "inproc://workers",
	"heartbeat-interval":   "2500ms",
	"default-message-wait": 0,
	"log.formatter":        "text",
	"log.level":            "info",
	"log.loki.address":     "http://localhost:3100",
	"log.loki.labels": map[string]string{
		"app": "async-messaged", "environment": "development",
	},
	"service.id": "org.grizzly.AsyncMessaged",
}

// GetConfig returns the application configuration singleton, loading it on
// first use.
func GetConfig() *Config {
	if instance == nil {
		lock.Lock()
		defer lock.Unlock()
		if instance == nil {
			if err := LoadConfigWithDefaults("async-messaged", &instance, defaults); err != nil {
				log.Fatalf("error reading config file: %s\n", err)
			}
		}
	}

	log.Tracef("config: %+v", instance)

	return instance
}

// LoadConfigWithDefaults populates *target from a viper-backed search of
// "<name>.yaml" across the working directory, $HOME/.config/<name> and
// /etc/<name>, seeding the given defaults first and honoring
// ASYNC_MESSAGED_-prefixed environment overrides (e.g.
// ASYNC_MESSAGED_FRONTEND_ENDPOINT).
func LoadConfigWithDefaults(name string, target **Config, defaults map[string]interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(fmt.Sprintf("%s/.config/%s", home, name))
	}
	v.AddConfigPath(fmt.Sprintf("/etc/%s", name))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("async_messaged")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		log.Debugf("no config file found for %s, using defaults and environment", name)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return err
	}

	*target = cfg

	return nil
}
