package rimage

import (
	"image"
	"testing"

	"go.viam.com/test"
)

func TestMatFromData(t *testing.T) {
	m, err := MatFromData(3, 2, []uint8{1, 2, 3, 4, 5, 6})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Width(), test.ShouldEqual, 3)
	test.That(t, m.Height(), test.ShouldEqual, 2)
	// Row-major layout.
	test.That(t, m.At(2, 0), test.ShouldEqual, uint8(3))
	test.That(t, m.At(0, 1), test.ShouldEqual, uint8(4))

	_, err = MatFromData(3, 2, []uint8{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMatBounds(t *testing.T) {
	m := NewMat[uint8](4, 3)
	test.That(t, m.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 3))
	test.That(t, m.In(0, 0), test.ShouldBeTrue)
	test.That(t, m.In(3, 2), test.ShouldBeTrue)
	test.That(t, m.In(4, 2), test.ShouldBeFalse)
	test.That(t, m.In(-1, 0), test.ShouldBeFalse)
}

func TestMatClone(t *testing.T) {
	m := NewMat[uint8](2, 2)
	m.Set(1, 1, 9)
	clone := m.Clone()
	clone.Set(1, 1, 3)
	test.That(t, m.At(1, 1), test.ShouldEqual, uint8(9))
	test.That(t, clone.At(1, 1), test.ShouldEqual, uint8(3))
}

func TestMatMapZip(t *testing.T) {
	m := NewMat[uint8](2, 2)
	m.Set(0, 0, 10)
	doubled := MatMap(m, func(v uint8) int { return 2 * int(v) })
	test.That(t, doubled.At(0, 0), test.ShouldEqual, 20)

	other := NewMat[int](2, 2)
	other.Set(0, 0, 5)
	sum, err := MatZip(doubled, other, func(a, b int) int { return a + b })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sum.At(0, 0), test.ShouldEqual, 25)

	_, err = MatZip(doubled, NewMat[int](3, 2), func(a, b int) int { return a + b })
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConvertImageToDepthMap(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 2, 2))
	img.Pix[0], img.Pix[1] = 0x13, 0x88 // 5000 big endian
	dm, err := ConvertImageToDepthMap(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.At(0, 0), test.ShouldEqual, Depth(5000))
	test.That(t, dm.At(1, 1), test.ShouldEqual, Depth(0))

	_, err = ConvertImageToDepthMap(image.NewGray(image.Rect(0, 0, 2, 2)))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBilinearInterpolate(t *testing.T) {
	m := NewMat[uint8](2, 2)
	m.Set(0, 0, 0)
	m.Set(1, 0, 100)
	m.Set(0, 1, 50)
	m.Set(1, 1, 150)

	v, ok := BilinearInterpolate(m, 0, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldAlmostEqual, 0)

	v, ok = BilinearInterpolate(m, 0.5, 0.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldAlmostEqual, 75)

	_, ok = BilinearInterpolate(m, 1.2, 0)
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = BilinearInterpolate(m, -0.1, 0)
	test.That(t, ok, test.ShouldBeFalse)
}
