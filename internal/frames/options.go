package frames

import (
	"errors"
	"fmt"
)

const (
	DefaultJPEGQuality = 2
	DefaultPrefix      = "frame"
)

// Options holds every tunable of the extraction pipeline.
type Options struct {
	CandidateMultiplier float64
	MaxCandidates       int
	MinHamming          int
	BrightMin           float64
	BrightMax           float64
	MinQuality          float64
	JPEGQuality         int
	HashSize            int
	Prefix              string
}

func DefaultOptions() Options {
	return Options{
		CandidateMultiplier: DefaultCandidateMultiplier,
		MaxCandidates:       DefaultMaxCandidates,
		MinHamming:          DefaultMinHamming,
		BrightMin:           DefaultBrightMin,
		BrightMax:           DefaultBrightMax,
		MinQuality:          DefaultMinQuality,
		JPEGQuality:         DefaultJPEGQuality,
		HashSize:            DefaultHashSize,
		Prefix:              DefaultPrefix,
	}
}

func (o Options) Validate() error {
	var errs []error
	if o.CandidateMultiplier < 1 {
		errs = append(errs, fmt.Errorf("candidate multiplier must be >= 1, got %v", o.CandidateMultiplier))
	}
	if o.MaxCandidates < 1 {
		errs = append(errs, fmt.Errorf("max candidates must be >= 1, got %d", o.MaxCandidates))
	}
	if o.MinHamming < 0 {
		errs = append(errs, fmt.Errorf("min hamming must be >= 0, got %d", o.MinHamming))
	}
	if o.BrightMin < 0 || o.BrightMax > 1 || o.BrightMin > o.BrightMax {
		errs = append(errs, fmt.Errorf("brightness band [%v, %v] must lie within [0, 1]", o.BrightMin, o.BrightMax))
	}
	if o.MinQuality < 0 {
		errs = append(errs, fmt.Errorf("min quality must be >= 0, got %v", o.MinQuality))
	}
	if o.JPEGQuality < 1 || o.JPEGQuality > 31 {
		errs = append(errs, fmt.Errorf("jpeg quality must be in 1..31, got %d", o.JPEGQuality))
	}
	if o.HashSize < 2 {
		errs = append(errs, fmt.Errorf("hash size must be >= 2, got %d", o.HashSize))
	}
	if o.Prefix == "" {
		errs = append(errs, errors.New("frame prefix must not be empty"))
	}
	return errors.Join(errs...)
}
