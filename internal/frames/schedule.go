package frames

import "math"

const (
	// UnknownDurationFrames is the budget used when the duration probe failed.
	UnknownDurationFrames = 15
	// MaxScheduledFrames caps the logarithmic tail of the schedule.
	MaxScheduledFrames = 50
)

// MaxFramesBySchedule returns the maximum number of frames to keep for a
// video. A caller supplied cap always wins. The result is an upper bound
// for the selector, never a target.
func MaxFramesBySchedule(duration float64, known bool, userCap *int) int {
	if userCap != nil {
		return *userCap
	}
	if !known || !usableDuration(duration) {
		return UnknownDurationFrames
	}

	d := duration
	switch {
	case d <= 10:
		return 3
	case d <= 30:
		return lerpRound(3, 5, (d-10)/20)
	case d <= 60:
		return lerpRound(5, 10, (d-30)/30)
	case d <= 120:
		return lerpRound(10, 15, (d-60)/60)
	case d <= 300:
		return lerpRound(15, 20, (d-120)/180)
	case d <= 600:
		return lerpRound(20, 30, (d-300)/300)
	}

	extra := int(math.Floor(10 * math.Log10(1+(d-600)/600)))
	return min(MaxScheduledFrames, 30+extra)
}

// usableDuration reports whether a probed duration can drive the schedule.
func usableDuration(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d >= 0
}

// lerpRound interpolates between from and to and rounds half to even.
func lerpRound(from, to, frac float64) int {
	return int(math.RoundToEven(from + frac*(to-from)))
}
