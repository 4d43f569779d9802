package rimage

// Halve partitions the matrix into non-overlapping 2x2 blocks and applies the
// reduction to each block, producing a matrix of half the floored resolution.
// A trailing odd row or column is dropped. Returns nil when either input
// dimension is below 2.
//
// The reduction receives the block elements as
//
//	a c
//	b d
func Halve[T, U any](m *Mat[T], reduce func(a, b, c, d T) U) *Mat[U] {
	halfW := m.width / 2
	halfH := m.height / 2
	if halfW == 0 || halfH == 0 {
		return nil
	}
	out := NewMat[U](halfW, halfH)
	for y := 0; y < halfH; y++ {
		for x := 0; x < halfW; x++ {
			a := m.At(2*x, 2*y)
			b := m.At(2*x, 2*y+1)
			c := m.At(2*x+1, 2*y)
			d := m.At(2*x+1, 2*y+1)
			out.Set(x, y, reduce(a, b, c, d))
		}
	}
	return out
}

// Sequence builds a pyramid by repeatedly applying step to the last level
// until it returns nil. The input matrix is level 0.
func Sequence[T any](m *Mat[T], step func(*Mat[T]) *Mat[T]) []*Mat[T] {
	pyramid := []*Mat[T]{m}
	for {
		next := step(pyramid[len(pyramid)-1])
		if next == nil {
			return pyramid
		}
		pyramid = append(pyramid, next)
	}
}

// LimitedSequence is Sequence capped at maxLevels levels. The result always
// contains at least the initial matrix, so maxLevels of 0 behaves like 1.
func LimitedSequence[T any](maxLevels int, m *Mat[T], step func(*Mat[T]) *Mat[T]) []*Mat[T] {
	levels := 1
	return Sequence(m, func(last *Mat[T]) *Mat[T] {
		if levels >= maxLevels {
			return nil
		}
		levels++
		return step(last)
	})
}

// MeanPyramid builds an intensity pyramid of at most maxLevels levels where
// each level is the 2x2 block integer mean of the previous one.
func MeanPyramid(maxLevels int, m *GrayMap) []*GrayMap {
	return LimitedSequence(maxLevels, m, func(last *GrayMap) *GrayMap {
		return Halve(last, func(a, b, c, d uint8) uint8 {
			return uint8((int(a) + int(b) + int(c) + int(d)) / 4)
		})
	})
}

// MeanDepthPyramid is MeanPyramid for raw 16 bits depth matrices.
func MeanDepthPyramid(maxLevels int, m *DepthMap) []*DepthMap {
	return LimitedSequence(maxLevels, m, func(last *DepthMap) *DepthMap {
		return Halve(last, func(a, b, c, d Depth) Depth {
			return Depth((uint32(a) + uint32(b) + uint32(c) + uint32(d)) / 4)
		})
	})
}
