package leveling

import "math"

// XPForLevel returns how much experience a member at the given level needs
// to advance to the next one, floor(base * factor^level). Results past
// int64 range clamp to MaxInt64 so the advancement loop terminates.
func XPForLevel(base int64, factor float64, level int) int64 {
	required := float64(base) * math.Pow(factor, float64(level))
	if required >= math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(required)
}
