// Package api defines public API contracts for xfer.
package api

// Audit event names.
const (
	EventSent            = "transfer.sent"
	EventCleanup         = "transfer.cleanup"
	EventTeardown        = "transfer.teardown"
	EventForcedTeardown  = "transfer.teardown.forced"
	EventTransportClosed = "transport.disposed"
)

// Auditor records transfer lifecycle events.
type Auditor interface {
	LogEvent(event string, details map[string]interface{}) error
}
