package pipeline

import "time"

// backoffSchedule implements spec.md §4.8's "back off min(2^n, 30) s" rule.
// n is the 1-based consecutive-error count, matching the scenario in
// spec.md §8 where three failures back off {2, 4, 8} seconds.
func backoffSchedule(n int) time.Duration {
	seconds := 1 << uint(n)
	if seconds > 30 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}
