package inference

import "time"

// BackoffDelay is the pure backoff schedule: base doubled per completed
// attempt, capped at max. Jitter is applied by the caller so this stays
// exactly testable.
func BackoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max || d <= 0 { // <= 0 guards duration overflow
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
