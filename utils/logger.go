package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/nullseed/logruseq"
	"github.com/sirupsen/logrus"
)

// LogConfig controls how the process logger is built.
type LogConfig struct {
	Environment string
	Level       string
	SeqURL      string
	SeqToken    string
	Output      io.Writer
}

// Logger provides structured, leveled logging throughout the application.
// The printf-style methods are kept so call sites read the same everywhere.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a Logger tagged with a per-process TraceId.
func NewLogger(cfg LogConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	base := logrus.New()
	base.Out = out
	base.Level = parseLevel(cfg.Level)

	if cfg.Environment == "production" {
		base.Formatter = &logrus.JSONFormatter{}
	} else {
		base.Formatter = &logrus.TextFormatter{
			ForceColors:      out == os.Stdout,
			FullTimestamp:    true,
			TimestampFormat:  "2006-01-02 15:04:05",
			QuoteEmptyFields: true,
		}
	}

	if cfg.SeqURL != "" {
		base.AddHook(logruseq.NewSeqHook(cfg.SeqURL, logruseq.OptionAPIKey(cfg.SeqToken)))
	}

	return &Logger{entry: base.WithField("TraceId", uuid.New().String())}
}

// NewNopLogger returns a Logger that discards everything. Used by tests.
func NewNopLogger() *Logger {
	return NewLogger(LogConfig{Level: "panic", Output: io.Discard})
}

func parseLevel(s string) logrus.Level {
	if s == "" {
		return logrus.DebugLevel
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(s))
	if err != nil {
		return logrus.DebugLevel
	}
	return lvl
}

// WithField returns a child logger carrying an extra field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a child logger carrying several extra fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Info(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

// Printf lets the logger stand in wherever a Printf-style sink is expected (cron).
func (l *Logger) Printf(format string, args ...any) {
	l.entry.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Writer streams each written line as a log entry at the given level.
// The caller must close the returned writer.
func (l *Logger) Writer(level string) *io.PipeWriter {
	return l.entry.WriterLevel(parseLevel(level))
}
