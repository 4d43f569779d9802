package odometry

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/mpizenberg/vors/rimage"
	"github.com/mpizenberg/vors/rimage/transform"
	"github.com/mpizenberg/vors/vision/inversedepth"
)

// ReprojectionError measures how well an inverse depth map explains a second
// view of the same scene: every valid pixel is lifted into the world through
// the reference camera, projected into the other camera, and the absolute
// intensity difference is accumulated, weighted by the precision (inverse
// variance) of the depth estimate.
//
// The inverse depth matrix, the images and both cameras must share one
// resolution. Pixels reprojecting outside the other image are skipped. The
// result is in intensity levels (0-255); an error is returned when no pixel
// contributed.
func ReprojectionError(
	idepth *rimage.Mat[inversedepth.InverseDepth],
	refCamera, otherCamera *transform.Camera,
	refImg, otherImg *rimage.GrayMap,
) (float64, error) {
	if idepth.Bounds() != refImg.Bounds() {
		return 0, errors.Errorf("inverse depth dimensions (%d,%d) don't match image dimensions (%d,%d)",
			idepth.Width(), idepth.Height(), refImg.Width(), refImg.Height())
	}
	sumWeighted := 0.0
	sumWeights := 0.0
	for y := 0; y < idepth.Height(); y++ {
		for x := 0; x < idepth.Width(); x++ {
			value, variance, ok := idepth.At(x, y).Value()
			if !ok || value <= 0 {
				continue
			}
			world := refCamera.BackProject(r2.Point{X: float64(x), Y: float64(y)}, 1/value)
			projected := otherCamera.Project(world)
			if projected.Z <= 0 {
				continue
			}
			sampled, ok := rimage.BilinearInterpolate(otherImg, projected.X/projected.Z, projected.Y/projected.Z)
			if !ok {
				continue
			}
			weight := 1 / variance
			diff := sampled - float64(refImg.At(x, y))
			if diff < 0 {
				diff = -diff
			}
			sumWeighted += weight * diff
			sumWeights += weight
		}
	}
	if sumWeights == 0 {
		return 0, errors.New("no valid reprojection, cannot evaluate an error")
	}
	return sumWeighted / sumWeights, nil
}
