package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// ConvertImageToGrayMap converts any image into an 8 bits intensity matrix
// using the standard library's grayscale conversion.
func ConvertImageToGrayMap(img image.Image) *GrayMap {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := NewMat[uint8](w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			out.Set(x, y, c.Y)
		}
	}
	return out
}

// ConvertImageToDepthMap converts a 16 bits grayscale image into a raw depth
// matrix, keeping the full 16 bits of each sample.
func ConvertImageToDepthMap(img image.Image) (*DepthMap, error) {
	gray16, ok := img.(*image.Gray16)
	if !ok {
		return nil, errors.Errorf("cannot convert image type %T to a depth map, expected *image.Gray16", img)
	}
	bounds := gray16.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := NewMat[Depth](w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(x, y, Depth(gray16.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
		}
	}
	return out, nil
}

// ToGray renders an intensity matrix back into a standard library image.
func ToGray(m *GrayMap) *image.Gray {
	img := image.NewGray(m.Bounds())
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			img.SetGray(x, y, color.Gray{Y: m.At(x, y)})
		}
	}
	return img
}

// BilinearInterpolate samples the intensity matrix at a fractional position.
// The second return value reports whether the full 2x2 neighborhood of the
// sample lies inside the image; when false the sample is unusable and the
// returned value is 0.
func BilinearInterpolate(m *GrayMap, x, y float64) (float64, bool) {
	if x < 0 || y < 0 {
		return 0, false
	}
	u, v := int(x), int(y)
	if u+1 >= m.Width() || v+1 >= m.Height() {
		return 0, false
	}
	a := x - float64(u)
	b := y - float64(v)
	value := (1-a)*(1-b)*float64(m.At(u, v)) +
		(1-a)*b*float64(m.At(u, v+1)) +
		a*(1-b)*float64(m.At(u+1, v)) +
		a*b*float64(m.At(u+1, v+1))
	return value, true
}
