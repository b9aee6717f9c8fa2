package logging

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/creastat/chatcontext/config"
)

// Logger represents a logger instance
type Logger = *logrus.Logger

// Fields represents structured logging fields
type Fields = logrus.Fields

// NewLogger creates a JSON logger at the level named by LOG_LEVEL
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithService creates a logger whose entries carry a service field
func NewLoggerWithService(serviceName string) *logrus.Entry {
	return NewLogger().WithField("service", serviceName)
}

// NewWriterLogger creates a JSON logger writing to w
func NewWriterLogger(w io.Writer) *logrus.Logger {
	logger := NewLogger()
	logger.SetOutput(w)
	return logger
}
