package usage

import "time"

// DefaultRetentionInterval is how often the retention sweep runs.
const DefaultRetentionInterval = 1 * time.Hour

// RunRetentionLoop runs sweepFn immediately, then at every interval, until
// stop is closed.
func RunRetentionLoop(stop <-chan struct{}, interval time.Duration, sweepFn func()) {
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweepFn()

	for {
		select {
		case <-ticker.C:
			sweepFn()
		case <-stop:
			return
		}
	}
}
