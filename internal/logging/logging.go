// Package logging provides the structured logging setup shared by the
// replication engine, event router and work queue.
package logging

import (
	"bytes"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes error-level log lines to Err and everything else to
// Out, so container log collectors can apply different handling per stream
// without parsing log levels themselves. Out/Err default to os.Stdout/
// os.Stderr when nil, matching how New already takes an explicit Config
// rather than reaching for package-level defaults internally; tests set
// them to in-memory buffers to observe routing directly.
type OutputSplitter struct {
	Out io.Writer
	Err io.Writer
}

func (s *OutputSplitter) Write(p []byte) (int, error) {
	out, errOut := s.Out, s.Err
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte("level=fatal")) {
		return errOut.Write(p)
	}
	return out.Write(p)
}

// Logger is the package-wide logger, writing through OutputSplitter.
// Components (the work queue, the replication engine, the event router)
// take a *logrus.Entry explicitly; when given nil they fall back to
// logrus's standard logger, not to this instance.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}

// Level mirrors logrus levels without forcing callers to import logrus
// directly for configuration plumbing.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config controls how New builds a logger.
type Config struct {
	Level  Level
	Format string // "json" or "text"
}

// New builds a logrus.Logger configured per cfg, with output routed through
// OutputSplitter.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logger.SetOutput(&OutputSplitter{})
	return logger
}
