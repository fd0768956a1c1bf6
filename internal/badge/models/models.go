package models

import (
	"time"

	id "waypost/pkg/domain"
)

// Badge is an issued verification credential for a listed venue. The token
// is bound at issuance and never changes for the badge's lifetime. Revocation
// is terminal; a replacement requires a fresh badge.
type Badge struct {
	ID            id.BadgeID
	VenueID       id.VenueID
	IssuedBy      id.UserID
	Token         string
	Active        bool
	Revoked       bool
	IssuedAt      time.Time
	ExpiresAt     *time.Time
	LastCheckedAt *time.Time
}

// ValidAt reports whether the badge is effective at the given instant.
// Expiry is a pure time comparison; a badge whose expiry equals now is
// already expired.
func (b *Badge) ValidAt(now time.Time) bool {
	if !b.Active || b.Revoked {
		return false
	}
	if b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
		return false
	}
	return true
}

// VenueAdmin links a user to a venue they manage. Only links with Verified
// set may issue or revoke badges for the venue.
type VenueAdmin struct {
	VenueID    id.VenueID
	UserID     id.UserID
	Verified   bool
	VerifiedAt *time.Time
	CreatedAt  time.Time
}
