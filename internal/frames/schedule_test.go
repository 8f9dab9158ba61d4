package frames

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestMaxFramesByScheduleTable(t *testing.T) {
	cases := map[float64]int{
		0:    3,
		5:    3,
		10:   3,
		20:   4,
		30:   5,
		45:   8,
		60:   10,
		120:  15,
		300:  20,
		600:  30,
		1200: 33,
	}
	for d, want := range cases {
		assert.Equal(t, want, MaxFramesBySchedule(d, true, nil), "duration %v", d)
	}
}

func TestMaxFramesByScheduleOverrideWins(t *testing.T) {
	assert.Equal(t, 7, MaxFramesBySchedule(5, true, intPtr(7)))
	assert.Equal(t, 7, MaxFramesBySchedule(5000, true, intPtr(7)))
	assert.Equal(t, 2, MaxFramesBySchedule(0, false, intPtr(2)))
}

func TestMaxFramesByScheduleUnknownDuration(t *testing.T) {
	assert.Equal(t, UnknownDurationFrames, MaxFramesBySchedule(0, false, nil))
}

func TestMaxFramesByScheduleNonFiniteDurationIsUnknown(t *testing.T) {
	for _, d := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		assert.Equal(t, UnknownDurationFrames, MaxFramesBySchedule(d, true, nil), "duration %v", d)
	}
}

func TestMaxFramesByScheduleMonotonicAndCapped(t *testing.T) {
	prev := 0
	for d := 0.0; d <= 200000; d += 7.5 {
		got := MaxFramesBySchedule(d, true, nil)
		assert.GreaterOrEqual(t, got, prev, "duration %v", d)
		assert.LessOrEqual(t, got, MaxScheduledFrames)
		prev = got
	}
	assert.Equal(t, MaxScheduledFrames, MaxFramesBySchedule(1e9, true, nil))
}
