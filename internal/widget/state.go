package widget

import "time"

type State int

const (
	Idle State = iota
	Fetching
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Observations are published roughly once an hour.
const observationPeriod = 60 * time.Minute

// ValidityFor returns how long a successful fetch holding an observation of
// the given age stays valid: until the next observation is expected, but
// never shorter than minValidity or longer than maxValidity. Unknown ages
// get minValidity.
func ValidityFor(ageMinutes int64, minValidity, maxValidity time.Duration) time.Duration {
	validity := observationPeriod
	switch {
	case ageMinutes >= int64(observationPeriod/time.Minute):
		validity = 0
	case ageMinutes > 0:
		validity -= time.Duration(ageMinutes) * time.Minute
	}
	if validity < minValidity {
		return minValidity
	}
	if validity > maxValidity {
		return maxValidity
	}
	return validity
}
