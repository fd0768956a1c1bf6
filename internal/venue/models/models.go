package models

import (
	"time"

	id "waypost/pkg/domain"
)

// Venue is a reported location. It starts unlisted unless submitted by an
// admin, and flips listed exactly once when corroboration crosses the
// activation threshold. Venues are never deleted by this service;
// deactivation is a visibility concern owned elsewhere.
type Venue struct {
	ID          id.VenueID
	Name        string
	Description string
	Listed      bool
	CreatedAt   time.Time
	ListedAt    *time.Time
}

// Draft is the submission payload before a venue exists.
type Draft struct {
	Name        string
	Description string
}

// Signal is an immutable corroboration event. SubmitterID is nil for
// anonymous signals; anonymous signals each count individually toward the
// activation threshold, identified submitters count once.
type Signal struct {
	ID          id.SignalID
	VenueID     id.VenueID
	Kind        id.SignalKind
	SourceRole  id.Role
	SubmitterID *id.UserID
	Note        string
	CreatedAt   time.Time
}
