package sampler

// PrecisionConstant is the scale of a computed usage value: 10000 equals
// 100.00 percent.
const PrecisionConstant = 10000

// Delta returns the number of ticks elapsed between two readings of a
// 32-bit counter that wraps at 2^32. The result is exact as long as the
// counter advanced by less than 2^32 ticks between the readings.
func Delta(prev, cur uint32) uint32 {
	return cur - prev
}

// UsagePercent returns the busy share of an interval, scaled by
// PrecisionConstant and truncated. The boolean result is false when
// totalDelta is zero and the percentage is undefined.
//
// An idle delta larger than the total delta can be observed when the two
// counters are updated at slightly different instants; it is clamped to
// the total delta.
func UsagePercent(idleDelta, totalDelta uint32) (uint32, bool) {
	if totalDelta == 0 {
		return 0, false
	}
	if idleDelta > totalDelta {
		idleDelta = totalDelta
	}

	busy := uint64(totalDelta - idleDelta)
	return uint32(busy * PrecisionConstant / uint64(totalDelta)), true
}
