// Package logger provides the structured logger shared by every service.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LoggingConfig selects the level and output format.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Logger is a logrus logger tagged with a component name.
type Logger struct {
	*logrus.Logger
	component string
}

// New builds a logger from configuration. Unknown levels fall back to info.
func New(cfg LoggingConfig) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "stderr":
		l.SetOutput(os.Stderr)
	case "discard":
		l.SetOutput(io.Discard)
	default:
		l.SetOutput(os.Stdout)
	}

	return &Logger{Logger: l}
}

// NewDefault returns an info level text logger for the named component.
func NewDefault(component string) *Logger {
	log := New(LoggingConfig{Level: "info", Format: "text"})
	log.component = component
	return log
}

// NewDiscard returns a logger that drops everything. Useful in tests.
func NewDiscard() *Logger {
	return New(LoggingConfig{Level: "panic", Output: "discard"})
}

// Component returns the component name, if any.
func (l *Logger) Component() string {
	return l.component
}

// WithComponent returns a logger sharing the same output, tagged with name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger, component: name}
}

// Entry returns a field entry that carries the component tag.
func (l *Logger) Entry() *logrus.Entry {
	if l.component == "" {
		return logrus.NewEntry(l.Logger)
	}
	return l.Logger.WithField("component", l.component)
}

// WithField shadows logrus so component tags are kept.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Entry().WithField(key, value)
}

// WithFields shadows logrus so component tags are kept.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Entry().WithFields(fields)
}

// WithError shadows logrus so component tags are kept.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Entry().WithError(err)
}
