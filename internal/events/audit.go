package events

import (
	"context"

	"phoneai_backend/platform/logger"
)

// AuditLogger writes every domain event to the structured log.
type AuditLogger struct {
	log *logger.Logger
}

// NewAuditLogger creates an audit subscriber.
func NewAuditLogger(log *logger.Logger) *AuditLogger {
	return &AuditLogger{log: log.WithComponent("audit")}
}

// RegisterHandlers subscribes the audit logger to all domain events.
func (a *AuditLogger) RegisterHandlers(bus Bus) {
	bus.Subscribe(CustomerIdentified{}.EventName(), a)
	bus.Subscribe(CustomerEnrolled{}.EventName(), a)
	bus.Subscribe(HandoffApplied{}.EventName(), a)
}

// Handle logs one event.
func (a *AuditLogger) Handle(ctx context.Context, event Event) error {
	switch e := event.(type) {
	case CustomerIdentified:
		a.log.Info("customer identified", "event", e.EventName(), "conversationId", e.ConversationID, "customerId", e.CustomerID, "method", e.Method)
	case CustomerEnrolled:
		a.log.Info("customer enrolled", "event", e.EventName(), "conversationId", e.ConversationID, "customerId", e.CustomerID, "vendorId", e.VendorID)
	case HandoffApplied:
		a.log.Info("handoff applied", "event", e.EventName(), "conversationId", e.ConversationID, "source", e.Source, "destination", e.Destination, "reason", e.Reason)
	default:
		a.log.Info("domain event", "event", event.EventName())
	}
	return nil
}
