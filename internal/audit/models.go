// Package audit records trust-state transitions: submissions, signals,
// activations, badge issuance and revocation. Events go to Kafka when
// brokers are configured and to an in-memory sink otherwise.
package audit

import (
	"time"

	id "waypost/pkg/domain"
)

// Action enumerates the audited transitions.
type Action string

const (
	ActionVenueSubmitted Action = "venue.submitted"
	ActionVenueActivated Action = "venue.activated"
	ActionSignalRecorded Action = "signal.recorded"
	ActionSignalRejected Action = "signal.rejected"
	ActionBadgeIssued    Action = "badge.issued"
	ActionBadgeRevoked   Action = "badge.revoked"
)

// Event is one audit record. Actor is absent for anonymous signals.
type Event struct {
	Action    Action     `json:"action"`
	VenueID   id.VenueID `json:"venue_id"`
	Actor     string     `json:"actor,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	ClientIP  string     `json:"client_ip,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
