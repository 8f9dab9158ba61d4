package frames

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/port"
)

var errEmptyFrame = errors.New("empty frame")

// Materializer turns a timestamp into a scored, hashed candidate.
type Materializer struct {
	grabber port.FrameGrabber
	hasher  *Hasher
	quality int
}

func NewMaterializer(grabber port.FrameGrabber, hasher *Hasher, jpegQuality int) *Materializer {
	return &Materializer{grabber: grabber, hasher: hasher, quality: jpegQuality}
}

// Materialize captures and analyzes one frame. Capture and decode failures
// come back as a skipped probe, never as an error.
func (m *Materializer) Materialize(ctx context.Context, source string, headers []string, ts float64) Probe {
	data, err := m.grabber.GrabFrame(ctx, source, ts, headers, m.quality)
	if err == nil && len(data) == 0 {
		err = errEmptyFrame
	}
	if err != nil {
		return Probe{Timestamp: ts, Skip: SkipCapture, Err: err}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Probe{Timestamp: ts, Skip: SkipDecode, Err: err}
	}
	return Probe{Timestamp: ts, Candidate: m.analyze(ts, data, img)}
}

func (m *Materializer) analyze(ts float64, data []byte, img image.Image) FrameCandidate {
	l := toLuma(img)
	return FrameCandidate{
		Timestamp:  ts,
		Image:      data,
		Sharpness:  l.LaplacianVariance(),
		Quality:    l.CompositeQuality(),
		Brightness: l.Brightness(),
		Hash:       m.hasher.hashLuma(l),
	}
}
