// Package transform provides the pinhole camera model used to move between
// pixel coordinates and 3D points, including the multi-resolution camera
// family matching an image pyramid.
package transform

import (
	"encoding/json"
	"io"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"github.com/mpizenberg/vors/spatialmath"
)

// ErrNoIntrinsics is returned when camera intrinsic parameters are missing or
// unusable.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// Intrinsics holds the parameters of a perspective projection onto the image
// plane: principal point, focal length, per-axis scaling and skew.
type Intrinsics struct {
	PrincipalPoint r2.Point `json:"principal_point"`
	FocalLength    float64  `json:"focal_length"`
	Scaling        r2.Point `json:"scaling"`
	Skew           float64  `json:"skew"`
}

// CheckValid checks if the fields of Intrinsics are usable.
func (i *Intrinsics) CheckValid() error {
	if i == nil {
		return errors.Wrap(ErrNoIntrinsics, "intrinsics do not exist")
	}
	if i.FocalLength == 0 {
		return errors.Wrapf(ErrNoIntrinsics, "invalid focal length %v", i.FocalLength)
	}
	if i.Scaling.X == 0 || i.Scaling.Y == 0 {
		return errors.Wrapf(ErrNoIntrinsics, "invalid axis scaling (%v, %v)", i.Scaling.X, i.Scaling.Y)
	}
	return nil
}

// NewIntrinsicsFromJSONFile reads intrinsics from a JSON file.
func NewIntrinsicsFromJSONFile(jsonPath string) (*Intrinsics, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	intrinsics := &Intrinsics{}
	if err := json.Unmarshal(byteValue, intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	return intrinsics, intrinsics.CheckValid()
}

// Matrix returns the 3x3 camera matrix
//
//	[[f*sx skew cx],
//	 [0    f*sy cy],
//	 [0    0    1]]
func (i *Intrinsics) Matrix() *mat.Dense {
	k := mat.NewDense(3, 3, nil)
	k.Set(0, 0, i.FocalLength*i.Scaling.X)
	k.Set(0, 1, i.Skew)
	k.Set(0, 2, i.PrincipalPoint.X)
	k.Set(1, 1, i.FocalLength*i.Scaling.Y)
	k.Set(1, 2, i.PrincipalPoint.Y)
	k.Set(2, 2, 1)
	return k
}

// Project applies the intrinsics to a point in the camera frame, returning
// the homogeneous pixel coordinates. Dividing by the third component gives
// the pixel position.
func (i *Intrinsics) Project(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: i.FocalLength*i.Scaling.X*p.X + i.Skew*p.Y + i.PrincipalPoint.X*p.Z,
		Y: i.FocalLength*i.Scaling.Y*p.Y + i.PrincipalPoint.Y*p.Z,
		Z: p.Z,
	}
}

// BackProject inverts the projection: it lifts a pixel back into the camera
// frame at the given depth along the optical axis. Composing BackProject then
// Project at the same depth returns the original pixel.
func (i *Intrinsics) BackProject(pixel r2.Point, depth float64) r3.Vector {
	yn := (pixel.Y - i.PrincipalPoint.Y) / (i.FocalLength * i.Scaling.Y)
	xn := (pixel.X - i.PrincipalPoint.X - i.Skew*yn) / (i.FocalLength * i.Scaling.X)
	return r3.Vector{X: xn * depth, Y: yn * depth, Z: depth}
}

// HalfRes returns the intrinsics of the same camera observing an image of
// half the resolution: principal point and scaling halve, skew and the focal
// length convention are preserved.
func (i Intrinsics) HalfRes() Intrinsics {
	i.PrincipalPoint = i.PrincipalPoint.Mul(0.5)
	i.Scaling = i.Scaling.Mul(0.5)
	return i
}

// MultiRes derives n intrinsics matching an image pyramid of n levels,
// level 0 at full resolution.
func (i Intrinsics) MultiRes(n int) []Intrinsics {
	family := make([]Intrinsics, 0, n)
	level := i
	for k := 0; k < n; k++ {
		family = append(family, level)
		level = level.HalfRes()
	}
	return family
}

// Camera pairs intrinsics with the extrinsic pose placing the camera in the
// world frame.
type Camera struct {
	Intrinsics Intrinsics
	Extrinsics spatialmath.Pose
}

// NewCamera returns a camera from intrinsics and extrinsics.
func NewCamera(intrinsics Intrinsics, extrinsics spatialmath.Pose) Camera {
	return Camera{Intrinsics: intrinsics, Extrinsics: extrinsics}
}

// Project maps a world point to homogeneous pixel coordinates.
func (c *Camera) Project(world r3.Vector) r3.Vector {
	return c.Intrinsics.Project(c.Extrinsics.Invert().Transform(world))
}

// BackProject lifts a pixel at a given depth back into world coordinates.
func (c *Camera) BackProject(pixel r2.Point, depth float64) r3.Vector {
	return c.Extrinsics.Transform(c.Intrinsics.BackProject(pixel, depth))
}

// MultiRes derives n cameras sharing the camera's extrinsics, one per pyramid
// level.
func (c Camera) MultiRes(n int) []Camera {
	family := make([]Camera, 0, n)
	for _, intr := range c.Intrinsics.MultiRes(n) {
		family = append(family, Camera{Intrinsics: intr, Extrinsics: c.Extrinsics})
	}
	return family
}
