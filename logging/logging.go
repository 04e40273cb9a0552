// Package logging provides the structured logging infrastructure shared by every
// client package. It routes error-level output to stderr and everything else to
// stdout so containerized and scripted callers can treat the two streams
// differently, and it exposes a small context-aware builder on top of logrus
// for attaching request-scoped fields (correlation id, method, URL, attempt).
package logging

import (
	"bytes"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes logrus output lines to stderr or stdout based on level.
type OutputSplitter struct{}

// Write implements io.Writer, inspecting the rendered line for "level=error"/"level=fatal".
func (OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte("level=fatal")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Config configures a new Logger.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // "json" or "text"
	TimeFormat string
}

// DefaultConfig returns sensible defaults: text format at info level.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text", TimeFormat: time.RFC3339}
}

// New creates a configured *logrus.Logger with output stream routing applied.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: cfg.TimeFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: cfg.TimeFormat, FullTimestamp: true})
	}
	logger.SetOutput(OutputSplitter{})
	return logger
}

// Logger is the package-level default, used when a caller does not supply
// their own via httpconn.WithLogger.
var Logger = New(DefaultConfig())

// Fields is a local alias so callers don't need to import logrus directly.
type Fields = logrus.Fields

// Contextual wraps a *logrus.Logger with a fixed set of fields that are
// attached to every subsequent call, so a connection can derive one logger per
// request without repeating request_id/method/url at every call site.
type Contextual struct {
	logger *logrus.Logger
	fields Fields
}

// NewContextual builds a Contextual logger, falling back to the package Logger
// if logger is nil.
func NewContextual(logger *logrus.Logger, fields Fields) *Contextual {
	if logger == nil {
		logger = Logger
	}
	merged := make(Fields, len(fields))
	for k, v := range fields {
		merged[k] = v
	}
	return &Contextual{logger: logger, fields: merged}
}

// With returns a derived Contextual with additional fields merged in.
func (c *Contextual) With(fields Fields) *Contextual {
	merged := make(Fields, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Contextual{logger: c.logger, fields: merged}
}

// WithError attaches an error field.
func (c *Contextual) WithError(err error) *Contextual {
	return c.With(Fields{"error": err.Error()})
}

func (c *Contextual) entry() *logrus.Entry { return c.logger.WithFields(c.fields) }

func (c *Contextual) Debug(args ...interface{}) { c.entry().Debug(args...) }
func (c *Contextual) Info(args ...interface{})  { c.entry().Info(args...) }
func (c *Contextual) Warn(args ...interface{})  { c.entry().Warn(args...) }
func (c *Contextual) Error(args ...interface{}) { c.entry().Error(args...) }

func (c *Contextual) Debugf(format string, args ...interface{}) { c.entry().Debugf(format, args...) }
func (c *Contextual) Infof(format string, args ...interface{})  { c.entry().Infof(format, args...) }
func (c *Contextual) Warnf(format string, args ...interface{})  { c.entry().Warnf(format, args...) }
func (c *Contextual) Errorf(format string, args ...interface{}) { c.entry().Errorf(format, args...) }

// Timed logs the start and end of an operation, including its duration, the
// way the transfer engine reports phase timings.
func Timed(logger *Contextual, operation string, fn func() error) error {
	start := time.Now()
	logger.With(Fields{"operation": operation}).Debug("operation started")

	err := fn()

	entry := logger.With(Fields{
		"operation":   operation,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("operation failed")
		return err
	}
	entry.Debug("operation completed")
	return nil
}
