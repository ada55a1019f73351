// Package audit records transfer lifecycle events.
package audit

import (
	"go.uber.org/zap"

	"github.com/srediag/xfer/api"
)

var (
	_ api.Auditor = (*Logger)(nil)
	_ api.Auditor = Nop{}
)

// Logger writes audit events to a zap logger at Info level.
type Logger struct {
	log *zap.Logger
}

// NewLogger returns an Auditor backed by log. A nil log discards events.
func NewLogger(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log.Named("audit")}
}

// LogEvent records event with its details as structured fields.
func (l *Logger) LogEvent(event string, details map[string]interface{}) error {
	fields := make([]zap.Field, 0, len(details)+1)
	fields = append(fields, zap.String("event", event))
	for k, v := range details {
		fields = append(fields, zap.Any(k, v))
	}
	l.log.Info("audit", fields...)
	return nil
}

// Nop discards events.
type Nop struct{}

// LogEvent implements api.Auditor.
func (Nop) LogEvent(string, map[string]interface{}) error { return nil }
