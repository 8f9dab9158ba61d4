package frames

import (
	"image"
	"image/color"
	"math"
)

// luma is a grayscale float buffer in the 0..255 range.
type luma struct {
	w, h int
	pix  []float64
}

func (l *luma) at(x, y int) float64 {
	// symmetric boundary: one pixel past the edge mirrors the edge pixel
	if x < 0 {
		x = -x - 1
	} else if x >= l.w {
		x = 2*l.w - x - 1
	}
	if y < 0 {
		y = -y - 1
	} else if y >= l.h {
		y = 2*l.h - y - 1
	}
	return l.pix[y*l.w+x]
}

// toLuma converts any image into a grayscale buffer. JPEG frames decode to
// YCbCr, whose Y plane is used directly.
func toLuma(img image.Image) *luma {
	b := img.Bounds()
	l := &luma{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}

	switch src := img.(type) {
	case *image.YCbCr:
		for y := 0; y < l.h; y++ {
			for x := 0; x < l.w; x++ {
				l.pix[y*l.w+x] = float64(src.Y[src.YOffset(b.Min.X+x, b.Min.Y+y)])
			}
		}
	case *image.Gray:
		for y := 0; y < l.h; y++ {
			for x := 0; x < l.w; x++ {
				l.pix[y*l.w+x] = float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		for y := 0; y < l.h; y++ {
			for x := 0; x < l.w; x++ {
				g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				l.pix[y*l.w+x] = float64(g.Y)
			}
		}
	}
	return l
}

func (l *luma) gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, l.w, l.h))
	for i, v := range l.pix {
		g.Pix[i] = uint8(v)
	}
	return g
}

// Brightness is the mean luminance normalized to [0,1].
func (l *luma) Brightness() float64 {
	if len(l.pix) == 0 {
		return 0
	}
	var sum float64
	for _, v := range l.pix {
		sum += v
	}
	return sum / float64(len(l.pix)) / 255
}

// LaplacianVariance is the variance of the 4-neighbour Laplacian response.
func (l *luma) LaplacianVariance() float64 {
	n := len(l.pix)
	if n == 0 {
		return 0
	}
	resp := make([]float64, n)
	var mean float64
	for y := 0; y < l.h; y++ {
		for x := 0; x < l.w; x++ {
			v := l.at(x, y-1) + l.at(x-1, y) - 4*l.at(x, y) + l.at(x+1, y) + l.at(x, y+1)
			resp[y*l.w+x] = v
			mean += v
		}
	}
	mean /= float64(n)

	var variance float64
	for _, v := range resp {
		d := v - mean
		variance += d * d
	}
	return variance / float64(n)
}

// GradientMagnitude is the mean Euclidean norm of the Sobel responses.
func (l *luma) GradientMagnitude() float64 {
	n := len(l.pix)
	if n == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < l.h; y++ {
		for x := 0; x < l.w; x++ {
			gx := -l.at(x-1, y-1) + l.at(x+1, y-1) -
				2*l.at(x-1, y) + 2*l.at(x+1, y) -
				l.at(x-1, y+1) + l.at(x+1, y+1)
			gy := -l.at(x-1, y-1) - 2*l.at(x, y-1) - l.at(x+1, y-1) +
				l.at(x-1, y+1) + 2*l.at(x, y+1) + l.at(x+1, y+1)
			sum += math.Hypot(gx, gy)
		}
	}
	return sum / float64(n)
}

// CompositeQuality blends normalized sharpness and gradient strength. Any
// failure while computing it yields 0.
func (l *luma) CompositeQuality() (score float64) {
	defer func() {
		if r := recover(); r != nil {
			score = 0
		}
	}()

	lap := math.Min(l.LaplacianVariance()/1000, 10)
	grad := math.Min(l.GradientMagnitude()/10, 5)
	score = 0.4*lap + 0.6*grad
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}
