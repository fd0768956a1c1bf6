package domain

// Level is the derived confidence tier for a venue. It is computed from the
// venue's signal history, never stored authoritatively.
type Level int

const (
	LevelReported   Level = 0
	LevelConfirmed  Level = 1
	LevelVerified   Level = 2
	LevelMaintained Level = 3
)

func (l Level) String() string {
	switch l {
	case LevelReported:
		return "reported"
	case LevelConfirmed:
		return "confirmed"
	case LevelVerified:
		return "verified"
	case LevelMaintained:
		return "maintained"
	default:
		return "unknown"
	}
}
