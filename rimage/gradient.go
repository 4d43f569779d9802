package rimage

import "gonum.org/v1/gonum/mat"

// Gradient holds the centered-difference intensity gradient of a 2x2 block.
type Gradient struct {
	X int16
	Y int16
}

func blockGradientX(a, b, c, d uint8) int16 {
	return int16((int(c) + int(d) - int(a) - int(b)) / 2)
}

func blockGradientY(a, b, c, d uint8) int16 {
	return int16((int(b) + int(d) - int(a) - int(c)) / 2)
}

// blockSquaredNorm fits the squared gradient norm of a 2x2 block into 16
// bits: dx and dy are twice the centered differences, so dividing by 8 is
// the usual /4 plus an extra halving that keeps the maximum below 2^16.
func blockSquaredNorm(a, b, c, d uint8) uint16 {
	dx := int(c) + int(d) - int(a) - int(b)
	dy := int(b) + int(d) - int(a) - int(c)
	return uint16((dx*dx + dy*dy) / 8)
}

// Gradients computes the squared gradient norm at each resolution from the
// image at the next higher resolution. Gradients need a neighbor, so the
// result has one level less than the source pyramid: gradient level i has
// the resolution of image level i+1.
func Gradients(pyramid []*GrayMap) []*Mat[uint16] {
	out := make([]*Mat[uint16], 0, len(pyramid)-1)
	for _, level := range pyramid[:len(pyramid)-1] {
		out = append(out, Halve(level, blockSquaredNorm))
	}
	return out
}

// GradientsXY computes the (x,y) centered gradients at each resolution from
// the image at the next higher resolution, one level less than the source
// pyramid. Both components come from one pass so they stay colocated.
func GradientsXY(pyramid []*GrayMap) []*Mat[Gradient] {
	out := make([]*Mat[Gradient], 0, len(pyramid)-1)
	for _, level := range pyramid[:len(pyramid)-1] {
		out = append(out, Halve(level, func(a, b, c, d uint8) Gradient {
			return Gradient{X: blockGradientX(a, b, c, d), Y: blockGradientY(a, b, c, d)}
		}))
	}
	return out
}

// MagnitudeField exports a squared-norm gradient matrix as a dense float
// matrix for callers doing linear algebra or statistics over it.
func MagnitudeField(g *Mat[uint16]) *mat.Dense {
	h, w := g.Height(), g.Width()
	out := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(y, x, float64(g.At(x, y)))
		}
	}
	return out
}
