package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	ffmpegBin  = "ffmpeg"
	ffprobeBin = "ffprobe"

	// rwTimeout is the ffmpeg socket timeout in microseconds.
	rwTimeout = "60000000"
)

var errNoOutput = errors.New("ffmpeg produced no frame")

// Grabber captures single frames with ffmpeg and probes durations with
// ffprobe. Sources may be local paths or http(s) URLs.
type Grabber struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

func NewGrabber(logger *zap.Logger) *Grabber {
	return &Grabber{ffmpegPath: ffmpegBin, ffprobePath: ffprobeBin, logger: logger}
}

// CheckTools fails when either binary is missing from PATH.
func (g *Grabber) CheckTools() error {
	var missing []string
	for _, bin := range []string{g.ffmpegPath, g.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s not found in PATH", strings.Join(missing, ", "))
	}
	return nil
}

func (g *Grabber) GrabFrame(ctx context.Context, source string, timestamp float64, headers []string, quality int) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.ffmpegPath, grabArgs(source, timestamp, headers, quality)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, strings.TrimSpace(stderr.String()))
	}
	if len(out) == 0 {
		return nil, errNoOutput
	}
	return out, nil
}

func (g *Grabber) ProbeDuration(ctx context.Context, source string) (float64, error) {
	cmd := exec.CommandContext(ctx, g.ffprobePath, probeArgs(source)...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	duration, err := parseDuration(output)
	if err != nil {
		return 0, err
	}
	g.logger.Debug("duration probed", zap.String("source", source), zap.Float64("duration", duration))
	return duration, nil
}

func grabArgs(source string, timestamp float64, headers []string, quality int) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-nostdin",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_at_eof", "1",
		"-rw_timeout", rwTimeout,
		"-ss", strconv.FormatFloat(max(0, timestamp), 'f', 3, 64),
	}
	for _, h := range headers {
		args = append(args, "-headers", h)
	}
	return append(args,
		"-http_seekable", "1",
		"-i", source,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-q:v", strconv.Itoa(quality),
		"pipe:1",
	)
}

func probeArgs(source string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nw=1:nk=1",
		source,
	}
}

func parseDuration(output []byte) (float64, error) {
	s := strings.TrimSpace(string(output))
	if s == "" || s == "N/A" {
		return 0, errors.New("duration not reported")
	}
	duration, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return 0, fmt.Errorf("unusable duration %q", s)
	}
	return duration, nil
}
