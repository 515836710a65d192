// Package logging configures the process-wide structured logger with
// file rotation.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

// Setup configures logrus for the named service and returns its root
// entry. Level comes from LOG_LEVEL (default info). When LOG_DIRECTORY
// is set, output goes to stdout and a rotating file; otherwise stdout
// only. LOG_FILE_MAX_AGE bounds retention in days (default 7).
func Setup(service string) *logrus.Entry {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	level, err := logrus.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if dir := os.Getenv("LOG_DIRECTORY"); dir != "" {
		rl, err := newRotatingWriter(dir, service)
		if err != nil {
			log.WithError(err).Warn("file logging disabled, using stdout only")
		} else {
			log.SetOutput(io.MultiWriter(os.Stdout, rl))
		}
	}

	return log.WithField("service", service)
}

func newRotatingWriter(dir, service string) (*rotatelogs.RotateLogs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	maxAgeDays, err := strconv.Atoi(envOr("LOG_FILE_MAX_AGE", "7"))
	if err != nil || maxAgeDays <= 0 {
		maxAgeDays = 7
	}

	base := filepath.Join(dir, service)
	rl, err := rotatelogs.New(
		base+".%Y-%m-%d.log",
		rotatelogs.WithLinkName(base+".log"),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(time.Duration(maxAgeDays)*24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing log rotation: %w", err)
	}
	return rl, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
