// Package rimage defines the image matrix types and the multiresolution
// machinery used by direct visual odometry: intensity and depth matrices,
// pyramid construction by 2x2 block reduction, block gradients and
// gradient-based candidate selection.
package rimage

import (
	"image"

	"github.com/pkg/errors"
)

// Depth is a raw sensor depth sample. Zero carries no meaning here beyond its
// numeric value; missing-ness is modeled by the inverse depth states built on
// top of these matrices.
type Depth uint16

// Mat is a dense row-major matrix of arbitrary element type.
type Mat[T any] struct {
	width  int
	height int
	data   []T
}

// GrayMap is an 8 bits per pixel intensity matrix.
type GrayMap = Mat[uint8]

// DepthMap is a 16 bits per pixel raw depth matrix.
type DepthMap = Mat[Depth]

// NewMat returns a zeroed width x height matrix.
func NewMat[T any](width, height int) *Mat[T] {
	return &Mat[T]{
		width:  width,
		height: height,
		data:   make([]T, width*height),
	}
}

// MatFromData wraps an existing row-major slice. The slice is not copied.
func MatFromData[T any](width, height int, data []T) (*Mat[T], error) {
	if len(data) != width*height {
		return nil, errors.Errorf("matrix data length %d does not match dimensions (%d,%d)", len(data), width, height)
	}
	return &Mat[T]{width: width, height: height, data: data}, nil
}

func (m *Mat[T]) kxy(x, y int) int {
	return y*m.width + x
}

// Width returns the number of columns.
func (m *Mat[T]) Width() int {
	return m.width
}

// Height returns the number of rows.
func (m *Mat[T]) Height() int {
	return m.height
}

// Bounds returns the image rectangle covered by the matrix.
func (m *Mat[T]) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// In reports whether the pixel (x,y) lies inside the matrix.
func (m *Mat[T]) In(x, y int) bool {
	return x >= 0 && x < m.width && y >= 0 && y < m.height
}

// At returns the element at column x, row y.
func (m *Mat[T]) At(x, y int) T {
	return m.data[m.kxy(x, y)]
}

// Set writes the element at column x, row y.
func (m *Mat[T]) Set(x, y int, v T) {
	m.data[m.kxy(x, y)] = v
}

// Clone returns a deep copy of the matrix.
func (m *Mat[T]) Clone() *Mat[T] {
	data := make([]T, len(m.data))
	copy(data, m.data)
	return &Mat[T]{width: m.width, height: m.height, data: data}
}

// MatMap applies f to every element of m, producing a new matrix of the same
// shape.
func MatMap[T, U any](m *Mat[T], f func(T) U) *Mat[U] {
	out := NewMat[U](m.width, m.height)
	for i, v := range m.data {
		out.data[i] = f(v)
	}
	return out
}

// MatZip applies f pairwise to two matrices of identical shape.
func MatZip[T, U, V any](a *Mat[T], b *Mat[U], f func(T, U) V) (*Mat[V], error) {
	if a.width != b.width || a.height != b.height {
		return nil, errors.Errorf("matrix dimensions don't match (%d,%d) != (%d,%d)", a.width, a.height, b.width, b.height)
	}
	out := NewMat[V](a.width, a.height)
	for i := range a.data {
		out.data[i] = f(a.data[i], b.data[i])
	}
	return out, nil
}
