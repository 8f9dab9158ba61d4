package frames

const (
	DefaultCandidateMultiplier = 4.0
	DefaultMaxCandidates       = 200
)

// SampleTimestamps returns the seek points to probe for a video. With a known
// duration they are evenly spaced over the middle 98% of the video so intro
// and outro black frames are avoided. Without one, small integer offsets are
// returned as a best-effort probe sequence.
func SampleTimestamps(duration float64, known bool, target int, multiplier float64, maxCandidates int) []float64 {
	n := int(min(float64(maxCandidates), max(float64(target)*multiplier, float64(target))))
	if n < 0 {
		n = 0
	}

	if !known || !usableDuration(duration) || duration == 0 {
		ts := make([]float64, n)
		for i := range ts {
			ts[i] = float64(i)
		}
		return ts
	}

	start := 0.01 * duration
	end := 0.99 * duration
	if n <= 1 {
		return []float64{0.5 * duration}
	}

	step := (end - start) / float64(n-1)
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = start + float64(i)*step
	}
	ts[n-1] = end
	return ts
}
