package frames

import "math/bits"

// FrameCandidate is one successfully materialized probe of a video. All
// derived signals come from the same decoded image.
type FrameCandidate struct {
	Timestamp  float64
	Image      []byte
	Sharpness  float64 // legacy Laplacian variance, not used for ranking
	Quality    float64
	Brightness float64
	Hash       Hash
}

// Hash is a perceptual hash packed into 64-bit words, row-major, most
// significant bit first.
type Hash []uint64

// Bits returns the number of meaningful bits in the hash.
func (h Hash) Bits() int { return len(h) * 64 }

// Hamming counts the differing bit positions between two hashes. Hashes of
// unequal length are compared over the shorter one and every bit of the
// excess words counts as a difference.
func Hamming(a, b Hash) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	d := 0
	for i := range b {
		d += bits.OnesCount64(a[i] ^ b[i])
	}
	for i := len(b); i < len(a); i++ {
		d += bits.OnesCount64(a[i])
	}
	return d
}

// SkipReason tells why a probe produced no candidate.
type SkipReason string

const (
	SkipNone    SkipReason = ""
	SkipCapture SkipReason = "capture_failed"
	SkipDecode  SkipReason = "decode_failed"
)

// Probe is the outcome of materializing one timestamp: either a candidate or
// the reason it was skipped.
type Probe struct {
	Timestamp float64
	Candidate FrameCandidate
	Skip      SkipReason
	Err       error
}

// Ok reports whether the probe produced a candidate.
func (p Probe) Ok() bool { return p.Skip == SkipNone }
