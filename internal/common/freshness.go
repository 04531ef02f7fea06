package common

import (
	"fmt"
	"time"
)

// StalenessResult contains the result of a staleness check.
type StalenessResult struct {
	// IsStale indicates whether the data needs refreshing.
	IsStale bool
	// NextCheckTime is when the data becomes stale if it is currently fresh.
	NextCheckTime time.Time
	// Reason provides a human-readable explanation for the staleness decision.
	Reason string
}

// CheckFreshness reports whether lastRefreshed is older than threshold at now.
// A zero lastRefreshed (never refreshed) is always stale.
func CheckFreshness(lastRefreshed time.Time, now time.Time, threshold time.Duration) StalenessResult {
	if lastRefreshed.IsZero() {
		return StalenessResult{
			IsStale: true,
			Reason:  "never refreshed",
		}
	}

	age := now.Sub(lastRefreshed)
	if age >= threshold {
		return StalenessResult{
			IsStale: true,
			Reason:  fmt.Sprintf("last refreshed %s ago, threshold %s", age.Round(time.Second), threshold),
		}
	}

	return StalenessResult{
		IsStale:       false,
		NextCheckTime: lastRefreshed.Add(threshold),
		Reason:        fmt.Sprintf("refreshed %s ago, fresh until %s", age.Round(time.Second), lastRefreshed.Add(threshold).Format(time.RFC3339)),
	}
}
