// Package logging wires up logrus the way the rest of the fleet's daemons
// do (see proxy/main.go): a text or JSON formatter driven by LogConfig,
// plus a Loki shipping hook. On top of that it layers async-messaged's own
// sink discipline: stderr always, and a debug-gated file sink under
// GRIZZLY_CONTEXT_ROOT.
package logging

import (
	"github.com/grizzly-loadtest/async-messaged/internal/config"

	log "github.com/sirupsen/logrus"
	loki "github.com/yukitsune/lokirus"
)

// Initialize applies the given LogConfig to the standard logrus logger:
// level, formatter and (if an address is configured) a Loki hook.
func Initialize(cfg config.LogConfig) {
	if logLevel, err := log.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(logLevel)
	}

	if cfg.Formatter == "json" {
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if cfg.Loki.Address == "" {
		return
	}

	opts := loki.NewLokiHookOptions().WithLevelMap(
		loki.LevelMap{log.PanicLevel: "critical"},
	).WithFormatter(
		&log.JSONFormatter{},
	).WithStaticLabels(loki.Labels(cfg.Loki.Labels))

	hook := loki.NewLokiHookWithOpts(
		cfg.Loki.Address,
		opts,
		log.InfoLevel,
		log.WarnLevel,
		log.ErrorLevel,
		log.FatalLevel,
	)

	log.AddHook(hook)
}
