package port

import "context"

// FrameGrabber captures a single still image at a timestamp of a local or
// remote video. Seek and network errors are expected and not fatal.
type FrameGrabber interface {
	GrabFrame(ctx context.Context, source string, timestamp float64, headers []string, quality int) ([]byte, error)
}

// DurationProber reports the duration of a video in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, source string) (float64, error)
}

// ToolChecker verifies that the external media tools are installed.
type ToolChecker interface {
	CheckTools() error
}
