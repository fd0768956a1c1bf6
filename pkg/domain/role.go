package domain

import dErrors "waypost/pkg/domain-errors"

// Role is the source role attached to a submission or signal. Admin
// submissions list immediately; user submissions wait for corroboration.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleUser, RoleAdmin:
		return Role(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "role must be USER or ADMIN")
	}
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }
