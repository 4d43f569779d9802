// Package tumrgbd reads the TUM RGB-D benchmark format: associated depth and
// color frames, known camera calibrations, and trajectories compatible with
// the benchmark evaluation scripts.
package tumrgbd

import (
	"bufio"
	"fmt"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/mpizenberg/vors/rimage"
	"github.com/mpizenberg/vors/rimage/transform"
	"github.com/mpizenberg/vors/spatialmath"
)

// DepthScale is the raw depth unit of the benchmark PNG files: a raw sample
// of 5000 is one meter away.
const DepthScale = 5000

// Calibrations of the benchmark cameras. The fr* cameras carry the pixel
// focal lengths in the scaling terms with a unit focal length; the synthetic
// ICL-NUIM sequences use a negative y scaling.
var (
	Fr1 = transform.Intrinsics{
		PrincipalPoint: r2.Point{X: 318.6, Y: 255.3},
		FocalLength:    1,
		Scaling:        r2.Point{X: 517.3, Y: 516.5},
	}
	Fr2 = transform.Intrinsics{
		PrincipalPoint: r2.Point{X: 325.1, Y: 249.7},
		FocalLength:    1,
		Scaling:        r2.Point{X: 520.9, Y: 521.0},
	}
	Fr3 = transform.Intrinsics{
		PrincipalPoint: r2.Point{X: 320.1, Y: 247.6},
		FocalLength:    1,
		Scaling:        r2.Point{X: 535.4, Y: 539.2},
	}
	IclNuim = transform.Intrinsics{
		PrincipalPoint: r2.Point{X: 319.5, Y: 239.5},
		FocalLength:    1,
		Scaling:        r2.Point{X: 481.20, Y: -480.00},
	}
)

// NamedIntrinsics maps a camera identifier (fr1, fr2, fr3 or icl) to its
// calibration.
func NamedIntrinsics(name string) (*transform.Intrinsics, error) {
	switch name {
	case "fr1":
		return &Fr1, nil
	case "fr2":
		return &Fr2, nil
	case "fr3":
		return &Fr3, nil
	case "icl":
		return &IclNuim, nil
	default:
		return nil, errors.Errorf("unknown camera %q, expected fr1, fr2, fr3 or icl", name)
	}
}

// Association pairs one depth image with the closest color image, as produced
// by the benchmark association tooling (depth columns first).
type Association struct {
	DepthTimestamp float64
	DepthPath      string
	ImgTimestamp   float64
	ImgPath        string
}

// ParseAssociations reads an associations file: one association per line,
// "depth_timestamp depth_path img_timestamp img_path", with '#' comment lines
// and blank lines skipped.
func ParseAssociations(r io.Reader) ([]Association, error) {
	var associations []Association
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields, ok := dataFields(scanner.Text())
		if !ok {
			continue
		}
		if len(fields) != 4 {
			return nil, errors.Errorf("line %d: expected 4 fields, got %d", line, len(fields))
		}
		depthTime, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid depth timestamp", line)
		}
		imgTime, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid image timestamp", line)
		}
		associations = append(associations, Association{
			DepthTimestamp: depthTime,
			DepthPath:      fields[1],
			ImgTimestamp:   imgTime,
			ImgPath:        fields[3],
		})
	}
	return associations, scanner.Err()
}

// Frame is one timestamped pose of a camera trajectory.
type Frame struct {
	Timestamp float64
	Pose      spatialmath.Pose
}

// String formats the frame in the benchmark trajectory format
// "timestamp tx ty tz qx qy qz qw".
func (f Frame) String() string {
	t := f.Pose.Translation
	q := f.Pose.Rotation
	return fmt.Sprintf("%.6f %.6f %.6f %.6f %.6f %.6f %.6f %.6f",
		f.Timestamp, t.X, t.Y, t.Z, q.Imag, q.Jmag, q.Kmag, q.Real)
}

// ParseTrajectory reads a trajectory (for example a ground truth file): one
// frame per line in the String format, '#' comment lines and blank lines
// skipped.
func ParseTrajectory(r io.Reader) ([]Frame, error) {
	var frames []Frame
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields, ok := dataFields(scanner.Text())
		if !ok {
			continue
		}
		if len(fields) != 8 {
			return nil, errors.Errorf("line %d: expected 8 fields, got %d", line, len(fields))
		}
		values := make([]float64, 8)
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: invalid field %q", line, field)
			}
			values[i] = v
		}
		frames = append(frames, Frame{
			Timestamp: values[0],
			Pose: spatialmath.NewPose(
				r3.Vector{X: values[1], Y: values[2], Z: values[3]},
				quat.Number{Real: values[7], Imag: values[4], Jmag: values[5], Kmag: values[6]},
			),
		})
	}
	return frames, scanner.Err()
}

// dataFields splits a benchmark file line into fields, reporting false for
// comment and blank lines.
func dataFields(line string) ([]string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, false
	}
	return strings.Fields(trimmed), true
}

// ReadDepthPNG decodes a 16 bits grayscale benchmark depth image.
func ReadDepthPNG(r io.Reader) (*rimage.DepthMap, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "error decoding depth png")
	}
	return rimage.ConvertImageToDepthMap(img)
}

// ReadGrayPNG decodes a benchmark color image into an intensity matrix.
func ReadGrayPNG(r io.Reader) (*rimage.GrayMap, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "error decoding png")
	}
	return rimage.ConvertImageToGrayMap(img), nil
}
