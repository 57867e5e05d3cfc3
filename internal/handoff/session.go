package handoff

import (
	"slices"
	"time"

	"phoneai_backend/platform/apperr"
)

// Transition is one applied handoff.
type Transition struct {
	Source      HandlerName `json:"source"`
	Destination HandlerName `json:"destination"`
	Reason      string      `json:"reason,omitempty"`
	At          time.Time   `json:"at"`
}

// SessionState is everything a conversation carries across handlers.
// Collected fields are only ever filled; CustomerID never changes once set.
type SessionState struct {
	ID                string       `json:"id"`
	ActiveHandler     HandlerName  `json:"activeHandler"`
	CollectedPhone    string       `json:"collectedPhone,omitempty"`
	CollectedEmail    string       `json:"collectedEmail,omitempty"`
	CustomerID        string       `json:"customerId,omitempty"`
	PendingCandidates []string     `json:"pendingCandidates,omitempty"`
	PendingPhone      string       `json:"pendingPhone,omitempty"`
	HandoffHistory    []Transition `json:"handoffHistory"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share slices.
func (s SessionState) Clone() SessionState {
	s.PendingCandidates = slices.Clone(s.PendingCandidates)
	s.HandoffHistory = slices.Clone(s.HandoffHistory)
	if s.HandoffHistory == nil {
		s.HandoffHistory = []Transition{}
	}
	return s
}

// Identified reports whether a customer account is attached.
func (s *SessionState) Identified() bool {
	return s.CustomerID != ""
}

// RecordPhone stores a normalized phone number. Empty values are ignored.
func (s *SessionState) RecordPhone(normalized string) {
	if normalized != "" {
		s.CollectedPhone = normalized
	}
}

// RecordEmail stores a validated email. Empty values are ignored.
func (s *SessionState) RecordEmail(email string) {
	if email != "" {
		s.CollectedEmail = email
	}
}

// SetPendingCandidates remembers the ids of an ambiguous lookup on phone so
// a later email lookup can be checked against them. Empty ids clear the set.
func (s *SessionState) SetPendingCandidates(phone string, ids []string) {
	if len(ids) == 0 {
		s.ClearPendingCandidates()
		return
	}
	s.PendingCandidates = slices.Clone(ids)
	s.PendingPhone = phone
}

// ClearPendingCandidates forgets any ambiguous lookup.
func (s *SessionState) ClearPendingCandidates() {
	s.PendingCandidates = nil
	s.PendingPhone = ""
}

// CandidatesFor returns the pending candidates only when they were collected
// for phone.
func (s *SessionState) CandidatesFor(phone string) []string {
	if phone == "" || s.PendingPhone != phone {
		return nil
	}
	return slices.Clone(s.PendingCandidates)
}

// IdentifyCustomer attaches a customer id. Re-attaching the same id is a
// no-op; attaching a different one is rejected.
func (s *SessionState) IdentifyCustomer(id string) error {
	if id == "" {
		return apperr.Validation("customer id is required")
	}
	if s.CustomerID != "" && s.CustomerID != id {
		return apperr.Validation("conversation is already identified as another customer")
	}
	s.CustomerID = id
	s.ClearPendingCandidates()
	return nil
}
