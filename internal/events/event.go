// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"phoneai_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Identification Domain Events
// =============================================================================

// CustomerIdentified is published when a conversation is bound to an
// existing directory account.
type CustomerIdentified struct {
	BaseEvent
	ConversationID string `json:"conversationId"`
	CustomerID     string `json:"customerId"`
	// Method is "phone" or "email".
	Method string `json:"method"`
}

func (e CustomerIdentified) EventName() string { return "identification.customer.identified" }

// CustomerEnrolled is published after the directory accepted a new account.
type CustomerEnrolled struct {
	BaseEvent
	ConversationID string `json:"conversationId"`
	CustomerID     string `json:"customerId"`
	VendorID       int64  `json:"vendorId"`
}

func (e CustomerEnrolled) EventName() string { return "identification.customer.enrolled" }

// =============================================================================
// Handoff Domain Events
// =============================================================================

// HandoffApplied is published when the router activated a new handler.
type HandoffApplied struct {
	BaseEvent
	ConversationID string `json:"conversationId"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	Reason         string `json:"reason,omitempty"`
}

func (e HandoffApplied) EventName() string { return "handoff.applied" }
