// Package telemetry bootstraps the ambient observability stack: a
// logrus logger configured per config.AppConfig, the prometheus metrics
// this service exports, and an optional OTel self-tracing provider.
// Grounded on the teacher's internal/metrics and pkg/tracing, trimmed
// to the single jaeger exporter this service actually wires.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/warehoused/warehoused/internal/config"
)

// NewLogger builds a logrus.Logger from app config: json or text
// formatter, level parsed from app.log_level.
func NewLogger(cfg config.AppConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
