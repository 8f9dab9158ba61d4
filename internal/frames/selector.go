package frames

import "sort"

const (
	DefaultMinHamming   = 12
	DefaultBrightMin    = 0.08
	DefaultBrightMax    = 0.98
	DefaultMinQuality   = 0.3
	staticSampleSize    = 8
	staticThresholdRate = 0.4
	lowYieldRatio       = 0.3
	fallbackLimit       = 2
)

// SelectOptions bounds a selection. K is a maximum, not a target.
type SelectOptions struct {
	K          int
	MinHamming int
	BrightMin  float64
	BrightMax  float64
	MinQuality float64
}

// SelectDiverseTopK picks at most K high-quality, mutually distinct frames.
// It returns fewer when the candidates are dim, blurry, or near duplicates,
// and a single frame when the source looks static.
func SelectDiverseTopK(cands []FrameCandidate, opts SelectOptions) []FrameCandidate {
	if len(cands) == 0 || opts.K <= 0 {
		return nil
	}

	pool := filterTiered(cands, opts)

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Quality > pool[j].Quality
	})

	if isStatic(pool, opts.MinHamming) {
		return pool[:1]
	}

	chosen := []FrameCandidate{pool[0]}
	for _, c := range pool[1:] {
		if len(chosen) >= opts.K {
			break
		}
		if farFromAll(c, chosen, opts.MinHamming) {
			chosen = append(chosen, c)
		}
	}

	ratio := float64(len(chosen)) / float64(opts.K)
	if ratio < lowYieldRatio && len(chosen) > 2 {
		chosen = chosen[:max(1, len(chosen)/2)]
	}
	return chosen
}

// filterTiered applies the strictest filter that leaves anything behind.
// The returned slice is always a fresh copy.
func filterTiered(cands []FrameCandidate, opts SelectOptions) []FrameCandidate {
	inBand := func(c FrameCandidate) bool {
		return c.Brightness >= opts.BrightMin && c.Brightness <= opts.BrightMax
	}
	tiers := []func(FrameCandidate) bool{
		func(c FrameCandidate) bool { return inBand(c) && c.Quality >= opts.MinQuality },
		func(c FrameCandidate) bool { return inBand(c) && c.Quality >= opts.MinQuality*0.5 },
		inBand,
	}
	for _, keep := range tiers {
		var out []FrameCandidate
		for _, c := range cands {
			if keep(c) {
				out = append(out, c)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	n := min(fallbackLimit, opts.K, len(cands))
	return append([]FrameCandidate(nil), cands[:n]...)
}

// isStatic reports whether the best frames are so alike that the source is
// effectively a still image.
func isStatic(sorted []FrameCandidate, minHamming int) bool {
	if len(sorted) < 3 {
		return false
	}
	top := sorted[:min(staticSampleSize, len(sorted))]

	total, pairs := 0, 0
	for i := range top {
		for j := i + 1; j < len(top); j++ {
			total += Hamming(top[i].Hash, top[j].Hash)
			pairs++
		}
	}
	avg := float64(total) / float64(pairs)
	return avg < float64(minHamming)*staticThresholdRate
}

func farFromAll(c FrameCandidate, chosen []FrameCandidate, minHamming int) bool {
	for _, o := range chosen {
		if Hamming(c.Hash, o.Hash) < minHamming {
			return false
		}
	}
	return true
}
