package chatdb

import "time"

// appleEpoch is the Messages store's reference epoch, 2001-01-01 00:00:00 UTC.
// All message dates are offsets from this point, not from the Unix epoch.
var appleEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// nanosecondThreshold separates seconds-encoded dates from
// nanoseconds-encoded ones. The unit changed between macOS generations with
// no schema flag to detect it: raw values above 1e12 can only be nanosecond
// offsets (a seconds offset that large is tens of thousands of years out).
const nanosecondThreshold = int64(1_000_000_000_000)

// decodeAppleTime converts a raw chat.db date integer to a time.Time,
// handling both the legacy seconds encoding and the modern nanoseconds one.
func decodeAppleTime(raw int64) time.Time {
	if raw > nanosecondThreshold {
		return appleEpoch.Add(time.Duration(raw) * time.Nanosecond)
	}
	return appleEpoch.Add(time.Duration(raw) * time.Second)
}

// encodeAppleTime converts a time.Time to the modern nanoseconds-since-
// reference-epoch representation.
func encodeAppleTime(t time.Time) int64 {
	return t.Sub(appleEpoch).Nanoseconds()
}

// encodeAppleTimeLegacy converts a time.Time to the legacy seconds
// representation used by rows written on older OS generations.
func encodeAppleTimeLegacy(t time.Time) int64 {
	return int64(t.Sub(appleEpoch).Seconds())
}
