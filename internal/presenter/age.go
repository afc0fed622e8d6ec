package presenter

import "fmt"

// TimeOldString describes an observation age for humans. Each unit is used
// from two of it upwards, so 119 minutes is "119 minutes old" and 120 is
// "2 hours old". Negative ages count as current.
func TimeOldString(minutes int64) string {
	if minutes < 2 {
		return "current"
	}
	if minutes < 120 {
		return fmt.Sprintf("%d minutes old", minutes)
	}

	hours := minutes / 60
	if hours < 48 {
		return fmt.Sprintf("%d hours old", hours)
	}

	days := hours / 24
	if days < 14 {
		return fmt.Sprintf("%d days old", days)
	}
	if days < 60 {
		return fmt.Sprintf("%d weeks old", days/7)
	}
	if days < 730 {
		return fmt.Sprintf("%d months old", days/30)
	}
	return fmt.Sprintf("%d years old", days/365)
}
