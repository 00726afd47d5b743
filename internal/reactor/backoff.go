package reactor

import "time"

// Backoff-schedule thresholds for scheduling the next connect attempt
// after a failure, per the client's retry policy: short delay for the
// first few failures, longer delay for a stretch after that, then the
// handle goes dormant and stops retrying entirely.
const (
	// ShortRetryDelay is used while consecutive failures < ShortRetryLimit.
	ShortRetryDelay = 10 * time.Second
	// LongRetryDelay is used while ShortRetryLimit <= consecutive failures
	// < DormantThreshold.
	LongRetryDelay = 60 * time.Second
	// ShortRetryLimit is the failure count below which ShortRetryDelay applies.
	ShortRetryLimit = 3
	// DormantThreshold is the failure count at and beyond which the
	// handle stops scheduling retries altogether.
	DormantThreshold = 10
)

// NextRetryAt computes the absolute time of the next connect attempt
// given the number of consecutive failures observed so far, including
// the one that just happened, and the current time. It returns
// ok=false once consecutiveFailures has reached DormantThreshold,
// meaning no further retry should be scheduled.
func NextRetryAt(now time.Time, consecutiveFailures int) (at time.Time, ok bool) {
	if consecutiveFailures >= DormantThreshold {
		return time.Time{}, false
	}
	if consecutiveFailures < ShortRetryLimit {
		return now.Add(ShortRetryDelay), true
	}
	return now.Add(LongRetryDelay), true
}
