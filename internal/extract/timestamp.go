package extract

import (
	"fmt"
	"math"
	"time"
)

// MacEpochOffset is the number of seconds between the Unix epoch and the
// macOS/Cocoa reference date, 2001-01-01T00:00:00Z.
const MacEpochOffset int64 = 978307200

// Bounds of Unix seconds that map to years 0001 through 9999.
const (
	minUnixSeconds int64 = -62135596800
	maxUnixSeconds int64 = 253402300799
)

// MacToUTC converts seconds since the macOS reference date into a UTC
// instant. It fails with a *ParseError when the result falls outside the
// representable calendar range.
func MacToUTC(native int64) (time.Time, error) {
	if native > maxUnixSeconds-MacEpochOffset || native < minUnixSeconds-MacEpochOffset {
		return time.Time{}, &ParseError{Field: "timestamp", Msg: fmt.Sprintf("invalid timestamp: %d", native)}
	}
	return time.Unix(native+MacEpochOffset, 0).UTC(), nil
}

// UTCToMac is the inverse of MacToUTC.
func UTCToMac(t time.Time) int64 {
	return t.Unix() - MacEpochOffset
}

// macFloatToUTC handles sources that store fractional seconds. The
// fraction is dropped, rounding toward negative infinity.
func macFloatToUTC(native float64) (time.Time, error) {
	if math.IsNaN(native) || math.IsInf(native, 0) {
		return time.Time{}, &ParseError{Field: "timestamp", Msg: fmt.Sprintf("invalid timestamp: %v", native)}
	}
	whole := math.Floor(native)
	if whole > float64(maxUnixSeconds) || whole < float64(minUnixSeconds) {
		return time.Time{}, &ParseError{Field: "timestamp", Msg: fmt.Sprintf("invalid timestamp: %v", native)}
	}
	return MacToUTC(int64(whole))
}
