// Package logger configures zerolog for the inventory service.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New writes JSON lines to stdout, or colored console output at debug
// level in development.
func New(serviceName string, environment string) *Logger {
	if environment == "development" {
		console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		l := NewWithWriter(console, serviceName)
		l.Logger = l.Level(zerolog.DebugLevel)
		return l
	}

	l := NewWithWriter(os.Stdout, serviceName)
	l.Logger = l.Level(zerolog.InfoLevel)
	return l
}

// NewWithWriter creates a logger that writes JSON lines to w
func NewWithWriter(w io.Writer, serviceName string) *Logger {
	return &Logger{
		Logger: zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger(),
	}
}

func (l *Logger) with(key, value string) *Logger {
	return &Logger{Logger: l.Logger.With().Str(key, value).Logger()}
}

// WithComponent names the part of the service emitting the entry
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.with("request_id", requestID)
}

// WithActorID attaches the acting user. Empty IDs are left out.
func (l *Logger) WithActorID(actorID string) *Logger {
	if actorID == "" {
		return l
	}
	return l.with("actor_id", actorID)
}

func (l *Logger) WithItemID(itemID string) *Logger {
	return l.with("item_id", itemID)
}
