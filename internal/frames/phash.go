package frames

import (
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"
)

const (
	DefaultHashSize = 8
	highFreqFactor  = 4
)

// Hasher computes DCT based perceptual hashes. It caches the cosine table for
// its sample size and is safe for concurrent use once built.
type Hasher struct {
	hashSize int
	size     int
	cos      []float64 // cos[k*size+n]
	scale    []float64
}

// NewHasher builds a hasher producing hashSize*hashSize bit hashes.
func NewHasher(hashSize int) *Hasher {
	if hashSize <= 0 {
		hashSize = DefaultHashSize
	}
	size := hashSize * highFreqFactor
	h := &Hasher{
		hashSize: hashSize,
		size:     size,
		cos:      make([]float64, size*size),
		scale:    make([]float64, size),
	}
	for k := 0; k < size; k++ {
		for n := 0; n < size; n++ {
			h.cos[k*size+n] = math.Cos(math.Pi * float64(2*n+1) * float64(k) / float64(2*size))
		}
		if k == 0 {
			h.scale[k] = math.Sqrt(1 / float64(size))
		} else {
			h.scale[k] = math.Sqrt(2 / float64(size))
		}
	}
	return h
}

// Hash returns the perceptual hash of img.
func (h *Hasher) Hash(img image.Image) Hash {
	return h.hashLuma(toLuma(img))
}

func (h *Hasher) hashLuma(l *luma) Hash {
	small := image.NewGray(image.Rect(0, 0, h.size, h.size))
	draw.CatmullRom.Scale(small, small.Bounds(), l.gray(), image.Rect(0, 0, l.w, l.h), draw.Src, nil)

	pixels := make([]float64, h.size*h.size)
	for i, v := range small.Pix {
		pixels[i] = float64(v)
	}
	coef := h.dct2(pixels)

	hs := h.hashSize
	low := make([]float64, 0, hs*hs)
	for y := 0; y < hs; y++ {
		low = append(low, coef[y*h.size:y*h.size+hs]...)
	}

	// median over the block without the DC row and column
	ac := make([]float64, 0, (hs-1)*(hs-1))
	for y := 1; y < hs; y++ {
		ac = append(ac, low[y*hs+1:(y+1)*hs]...)
	}
	med := median(ac)

	out := make(Hash, (hs*hs+63)/64)
	for i, v := range low {
		if v > med {
			out[i/64] |= 1 << (63 - uint(i%64))
		}
	}
	return out
}

// dct2 is an orthonormal 2-D DCT-II over a size×size block, columns first.
func (h *Hasher) dct2(in []float64) []float64 {
	n := h.size
	tmp := make([]float64, n*n)
	for x := 0; x < n; x++ {
		for k := 0; k < n; k++ {
			var s float64
			for y := 0; y < n; y++ {
				s += in[y*n+x] * h.cos[k*n+y]
			}
			tmp[k*n+x] = s * h.scale[k]
		}
	}
	out := make([]float64, n*n)
	for y := 0; y < n; y++ {
		row := tmp[y*n : (y+1)*n]
		for k := 0; k < n; k++ {
			var s float64
			for x := 0; x < n; x++ {
				s += row[x] * h.cos[k*n+x]
			}
			out[y*n+k] = s * h.scale[k]
		}
	}
	return out
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
