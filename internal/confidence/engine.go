// Package confidence derives a venue's trust tier from its signal history.
// The computation is a pure function of the signal set: no clock, no store,
// no mutation. Levels are monotone over the append-only signal set:
// appending a signal can never lower the result.
package confidence

import (
	"waypost/internal/venue/models"
	id "waypost/pkg/domain"
)

// ComputeLevel applies the precedence rules, first match wins:
//
//  1. any ADMIN_VERIFY signal            → Maintained (3)
//  2. ≥ 3 distinct USER submitters       → Verified   (2)
//  3. ≥ 1 distinct USER submitter and at
//     least one corroboration on record  → Confirmed  (1)
//  4. otherwise                          → Reported   (0)
//
// A bare INITIAL signal alone yields Reported.
func ComputeLevel(signals []models.Signal) id.Level {
	hasCorroboration := false
	for _, signal := range signals {
		if signal.Kind == id.SignalAdminVerify {
			return id.LevelMaintained
		}
		if signal.Kind == id.SignalCorroboration {
			hasCorroboration = true
		}
	}

	distinct := DistinctUserSubmitters(signals)
	switch {
	case distinct >= 3:
		return id.LevelVerified
	case distinct >= 1 && hasCorroboration:
		return id.LevelConfirmed
	default:
		return id.LevelReported
	}
}

// DistinctUserSubmitters counts USER-role signals by submitter: each known
// identity once regardless of how often it signals, each anonymous signal
// individually. This is the activation-threshold count; a single actor
// cannot cross it by resubmitting.
func DistinctUserSubmitters(signals []models.Signal) int {
	seen := make(map[id.UserID]struct{})
	anonymous := 0
	for _, signal := range signals {
		if signal.SourceRole != id.RoleUser {
			continue
		}
		if signal.SubmitterID == nil {
			anonymous++
			continue
		}
		seen[*signal.SubmitterID] = struct{}{}
	}
	return len(seen) + anonymous
}
