package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "waypost/pkg/domain-errors"
)

// Typed IDs keep venue, user, signal and badge identifiers from being
// swapped at call sites. All are UUIDs under the hood; parsing enforces
// non-empty, non-nil values at trust boundaries.

type (
	UserID   uuid.UUID
	VenueID  uuid.UUID
	SignalID uuid.UUID
	BadgeID  uuid.UUID
)

func NewUserID() UserID     { return UserID(uuid.New()) }
func NewVenueID() VenueID   { return VenueID(uuid.New()) }
func NewSignalID() SignalID { return SignalID(uuid.New()) }
func NewBadgeID() BadgeID   { return BadgeID(uuid.New()) }

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id VenueID) String() string  { return uuid.UUID(id).String() }
func (id SignalID) String() string { return uuid.UUID(id).String() }
func (id BadgeID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id VenueID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SignalID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id BadgeID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }

func parseUUID(kind, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s id is required", kind))
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid %s id", kind))
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s id must not be nil", kind))
	}
	return parsed, nil
}

func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID("user", raw)
	return UserID(parsed), err
}

func ParseVenueID(raw string) (VenueID, error) {
	parsed, err := parseUUID("venue", raw)
	return VenueID(parsed), err
}

func ParseSignalID(raw string) (SignalID, error) {
	parsed, err := parseUUID("signal", raw)
	return SignalID(parsed), err
}

func ParseBadgeID(raw string) (BadgeID, error) {
	parsed, err := parseUUID("badge", raw)
	return BadgeID(parsed), err
}
