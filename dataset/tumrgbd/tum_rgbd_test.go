package tumrgbd

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestNamedIntrinsics(t *testing.T) {
	for name, expected := range map[string]float64{
		"fr1": 517.3,
		"fr2": 520.9,
		"fr3": 535.4,
		"icl": 481.20,
	} {
		intr, err := NamedIntrinsics(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, intr.Scaling.X, test.ShouldAlmostEqual, expected)
		test.That(t, intr.CheckValid(), test.ShouldBeNil)
	}
	_, err := NamedIntrinsics("kinect")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseAssociations(t *testing.T) {
	input := `# depth maps against color images
# timestamp filename timestamp filename
1305031102.160407 depth/1305031102.160407.png 1305031102.175304 rgb/1305031102.175304.png

1305031102.194330 depth/1305031102.194330.png 1305031102.211214 rgb/1305031102.211214.png
`
	associations, err := ParseAssociations(strings.NewReader(input))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, associations, test.ShouldHaveLength, 2)
	test.That(t, associations[0].DepthTimestamp, test.ShouldAlmostEqual, 1305031102.160407)
	test.That(t, associations[0].DepthPath, test.ShouldEqual, "depth/1305031102.160407.png")
	test.That(t, associations[0].ImgTimestamp, test.ShouldAlmostEqual, 1305031102.175304)
	test.That(t, associations[1].ImgPath, test.ShouldEqual, "rgb/1305031102.211214.png")
}

func TestParseAssociationsMalformed(t *testing.T) {
	_, err := ParseAssociations(strings.NewReader("1.0 depth.png 2.0\n"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ParseAssociations(strings.NewReader("nan.or.not depth.png 2.0 rgb.png\n"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseTrajectory(t *testing.T) {
	input := `# ground truth trajectory
1305031102.175304 1.3405 0.6266 1.6575 0.6574 0.6126 -0.2949 -0.3248
1305031102.211214 1.3303 0.6256 1.6464 0.6579 0.6161 -0.2932 -0.3189
`
	frames, err := ParseTrajectory(strings.NewReader(input))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frames, test.ShouldHaveLength, 2)
	test.That(t, frames[0].Timestamp, test.ShouldAlmostEqual, 1305031102.175304)
	test.That(t, frames[0].Pose.Translation.X, test.ShouldAlmostEqual, 1.3405)
	test.That(t, frames[0].Pose.Rotation.Imag, test.ShouldAlmostEqual, 0.6574, 1e-3)
	test.That(t, frames[0].Pose.Rotation.Real, test.ShouldAlmostEqual, -0.3248, 1e-3)
}

func TestFrameStringRoundTrip(t *testing.T) {
	input := "7.5 1.250000 -0.500000 2.000000 0.000000 0.000000 0.000000 1.000000"
	frames, err := ParseTrajectory(strings.NewReader(input))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frames, test.ShouldHaveLength, 1)

	reparsed, err := ParseTrajectory(strings.NewReader(frames[0].String()))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reparsed[0], test.ShouldResemble, frames[0])
}

func TestReadDepthPNG(t *testing.T) {
	depth := image.NewGray16(image.Rect(0, 0, 2, 2))
	depth.SetGray16(0, 0, color.Gray16{Y: DepthScale})
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, depth), test.ShouldBeNil)

	decoded, err := ReadDepthPNG(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Width(), test.ShouldEqual, 2)
	test.That(t, decoded.At(0, 0), test.ShouldEqual, DepthScale)
	test.That(t, decoded.At(1, 1), test.ShouldEqual, 0)
}

func TestReadGrayPNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.Pix[0] = 200
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, img), test.ShouldBeNil)

	decoded, err := ReadGrayPNG(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Width(), test.ShouldEqual, 3)
	test.That(t, decoded.At(0, 0), test.ShouldEqual, 200)
}
