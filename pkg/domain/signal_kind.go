package domain

import dErrors "waypost/pkg/domain-errors"

// SignalKind classifies a corroboration event. INITIAL is written once at
// submission time; CORROBORATION by later community confirmations;
// ADMIN_VERIFY by an administrator and short-circuits the confidence rules.
type SignalKind string

const (
	SignalInitial       SignalKind = "INITIAL"
	SignalCorroboration SignalKind = "CORROBORATION"
	SignalAdminVerify   SignalKind = "ADMIN_VERIFY"
)

func ParseSignalKind(raw string) (SignalKind, error) {
	switch SignalKind(raw) {
	case SignalInitial, SignalCorroboration, SignalAdminVerify:
		return SignalKind(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown signal kind")
	}
}
