package frames

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/port"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrToolMissing is returned when ffmpeg or ffprobe is not installed.
var ErrToolMissing = errors.New("frame extraction tools not available")

// ExtractionRequest describes one video to reduce to still frames. Nil
// optional fields fall back to the extractor options.
type ExtractionRequest struct {
	SourceURL           string
	OutputDir           string
	Filename            string
	MaxFrames           *int
	MinQuality          *float64
	CandidateMultiplier *float64
	Headers             []string
}

type ExtractionResult struct {
	FramesDir     string
	FramePaths    []string
	Duration      float64
	DurationKnown bool
	MaxFrames     int
	Sampled       int
	Candidates    int
	Skipped       map[SkipReason]int
}

// Extractor runs schedule, sampling, materialization and selection for a
// single video and writes the chosen frames to disk.
type Extractor struct {
	tools  port.ToolChecker
	prober port.DurationProber
	mat    *Materializer
	opts   Options
	logger *zap.Logger
}

func NewExtractor(tools port.ToolChecker, prober port.DurationProber, grabber port.FrameGrabber, opts Options, logger *zap.Logger) (*Extractor, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extraction options: %w", err)
	}
	return &Extractor{
		tools:  tools,
		prober: prober,
		mat:    NewMaterializer(grabber, NewHasher(opts.HashSize), opts.JPEGQuality),
		opts:   opts,
		logger: logger,
	}, nil
}

// Ready fails with ErrToolMissing when the media tools are not installed.
func (e *Extractor) Ready() error {
	if err := e.tools.CheckTools(); err != nil {
		return fmt.Errorf("%w: %v", ErrToolMissing, err)
	}
	return nil
}

func (e *Extractor) Extract(ctx context.Context, req ExtractionRequest) (*ExtractionResult, error) {
	tracer := otel.Tracer("frames")
	ctx, span := tracer.Start(ctx, "Extractor.Extract")
	defer span.End()

	if err := e.Ready(); err != nil {
		return nil, err
	}

	framesDir := filepath.Join(req.OutputDir, FramesDirName(req.Filename))
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}

	log := e.logger.With(zap.String("video", req.Filename))

	res := &ExtractionResult{FramesDir: framesDir, Skipped: map[SkipReason]int{}}
	duration, err := e.prober.ProbeDuration(ctx, req.SourceURL)
	switch {
	case err != nil:
		log.Debug("duration unknown", zap.Error(err))
	case !usableDuration(duration):
		log.Debug("duration unknown", zap.Float64("probed", duration))
	default:
		res.Duration, res.DurationKnown = duration, true
	}

	res.MaxFrames = MaxFramesBySchedule(res.Duration, res.DurationKnown, req.MaxFrames)

	mult := e.opts.CandidateMultiplier
	if req.CandidateMultiplier != nil {
		mult = *req.CandidateMultiplier
	}
	timestamps := SampleTimestamps(res.Duration, res.DurationKnown, res.MaxFrames, mult, e.opts.MaxCandidates)
	res.Sampled = len(timestamps)

	span.SetAttributes(
		attribute.Float64("video.duration", res.Duration),
		attribute.Int("frames.max", res.MaxFrames),
		attribute.Int("frames.sampled", res.Sampled),
	)

	candidates := make([]FrameCandidate, 0, len(timestamps))
	for _, ts := range timestamps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := e.mat.Materialize(ctx, req.SourceURL, req.Headers, ts)
		if !p.Ok() {
			res.Skipped[p.Skip]++
			continue
		}
		candidates = append(candidates, p.Candidate)
	}
	res.Candidates = len(candidates)

	minQuality := e.opts.MinQuality
	if req.MinQuality != nil {
		minQuality = *req.MinQuality
	}
	selected := SelectDiverseTopK(candidates, SelectOptions{
		K:          res.MaxFrames,
		MinHamming: e.opts.MinHamming,
		BrightMin:  e.opts.BrightMin,
		BrightMax:  e.opts.BrightMax,
		MinQuality: minQuality,
	})

	for i, c := range selected {
		path := filepath.Join(framesDir, FrameFilename(e.opts.Prefix, i+1, c.Timestamp))
		if err := os.WriteFile(path, c.Image, 0644); err != nil {
			return nil, fmt.Errorf("write frame %s: %w", path, err)
		}
		res.FramePaths = append(res.FramePaths, path)
	}

	log.Debug("frames selected",
		zap.Int("sampled", res.Sampled),
		zap.Int("candidates", res.Candidates),
		zap.Int("max_frames", res.MaxFrames),
		zap.Int("selected", len(res.FramePaths)),
	)
	return res, nil
}
