package logging

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// FileSink is a logrus hook that appends formatted entries to a log file
// under GRIZZLY_CONTEXT_ROOT/logs. It is only installed when
// GRIZZLY_EXTRAS_LOGLEVEL=DEBUG (see EnableFileSinkIfDebug).
type FileSink struct {
	file      *os.File
	formatter log.Formatter
}

// Levels implements logrus.Hook.
func (s *FileSink) Levels() []log.Level {
	return log.AllLevels
}

// Fire implements logrus.Hook.
func (s *FileSink) Fire(entry *log.Entry) error {
	line, err := s.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = s.file.Write(line)
	return err
}

// EnableFileSinkIfDebug installs a FileSink hook on the standard logger
// when GRIZZLY_EXTRAS_LOGLEVEL is DEBUG, writing to
// ${GRIZZLY_CONTEXT_ROOT}/logs/async-messaged.<hostname>.log. It is a
// no-op otherwise, and logs (but does not fail startup on) any error
// opening the log directory or file.
func EnableFileSinkIfDebug() {
	if os.Getenv("GRIZZLY_EXTRAS_LOGLEVEL") != "DEBUG" {
		return
	}

	root := os.Getenv("GRIZZLY_CONTEXT_ROOT")
	if root == "" {
		root = "."
	}

	logDir := filepath.Join(root, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.WithError(err).Error("failed to create log directory for file sink")
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	path := filepath.Join(logDir, fmt.Sprintf("async-messaged.%s.log", hostname))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.WithError(err).Error("failed to open file sink log")
		return
	}

	log.AddHook(&FileSink{
		file: file,
		formatter: &log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		},
	})

	log.Infof("debug file sink active at %s", path)
}
