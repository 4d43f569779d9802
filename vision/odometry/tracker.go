// Package odometry estimates the 6-dof pose of a moving RGB-D camera by
// direct photometric alignment of consecutive frames, coarse to fine over a
// multiresolution pyramid, fusing per-pixel inverse depth across views.
package odometry

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mpizenberg/vors/rimage"
	"github.com/mpizenberg/vors/rimage/transform"
	"github.com/mpizenberg/vors/spatialmath"
	"github.com/mpizenberg/vors/vision/inversedepth"
)

// Defaults for the optional optimization knobs of Config.
const (
	defaultMaxIterations        = 20
	defaultConvergenceThreshold = 1e-3
)

// Config gathers the parameters of the tracker.
type Config struct {
	// Levels is the number of pyramid levels (>= 2). Level 0 is full
	// resolution; candidates and inverse depth start at half resolution, so
	// optimization runs on levels 1 and coarser.
	Levels int
	// CandidatesThreshold is the gradient magnitude above which a pixel is
	// selected for photometric optimization.
	CandidatesThreshold uint16
	// DepthScale converts raw 16 bits depth samples to meters: a raw value
	// of DepthScale is one meter away.
	DepthScale float64
	// Intrinsics of the camera at full resolution.
	Intrinsics *transform.Intrinsics
	// IdepthVariance is the variance assumed for a fresh inverse depth
	// observation.
	IdepthVariance float64
	// Fusion merges child inverse depth observations while building the
	// reference pyramid. Defaults to the statistically-similar strategy.
	Fusion inversedepth.Strategy
	// MaxIterations bounds the optimizer iterations per pyramid level.
	MaxIterations int
	// ConvergenceThreshold stops a level when the relative residual
	// improvement falls below it.
	ConvergenceThreshold float64
	// InitialPose optionally seeds the first frame with a prior pose
	// instead of the identity.
	InitialPose *spatialmath.Pose
}

// CheckValid checks if the fields of Config are usable.
func (c *Config) CheckValid() error {
	if c == nil {
		return errors.New("tracker config does not exist")
	}
	if c.Levels < 2 {
		return errors.Errorf("at least 2 pyramid levels are required, got %d", c.Levels)
	}
	if c.DepthScale <= 0 {
		return errors.Errorf("invalid depth scale %v", c.DepthScale)
	}
	if c.IdepthVariance <= 0 {
		return errors.Errorf("invalid inverse depth variance %v", c.IdepthVariance)
	}
	return c.Intrinsics.CheckValid()
}

// candidate is one reference pixel selected for optimization: its
// back-projected 3D point in the reference camera frame, its reference
// intensity, and its fixed inverse-compositional jacobian.
type candidate struct {
	point     r3.Vector
	intensity float64
	jacobian  [6]float64
}

// refLevel is the per-level slice of the reference snapshot. The
// Gauss-Newton system matrix only depends on the reference jacobians, so its
// factorization is computed once here and reused every iteration.
type refLevel struct {
	candidates []candidate
	chol       mat.Cholesky
	usable     bool
}

// reference is the immutable snapshot of the frame being aligned against.
// It is replaced wholesale after each successful tracking step.
type reference struct {
	pose       spatialmath.Pose
	intrinsics []transform.Intrinsics
	// levels[i] corresponds to image pyramid level i+1.
	levels []refLevel
}

// Tracker estimates the camera trajectory one frame at a time. It is a two
// state machine: created uninitialized, then tracking for every subsequent
// frame.
type Tracker struct {
	config Config
	logger golog.Logger

	ref          *reference
	pose         spatialmath.Pose
	motion       spatialmath.Pose
	imgTime      float64
	depthTime    float64
	lastResidual float64
}

// NewTracker validates the configuration and returns an uninitialized
// tracker.
func NewTracker(config Config, logger golog.Logger) (*Tracker, error) {
	if err := config.CheckValid(); err != nil {
		return nil, err
	}
	if config.Fusion == nil {
		config.Fusion = inversedepth.StatisticallySimilar{}
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = defaultMaxIterations
	}
	if config.ConvergenceThreshold <= 0 {
		config.ConvergenceThreshold = defaultConvergenceThreshold
	}
	return &Tracker{
		config: config,
		logger: logger,
		pose:   spatialmath.NewZeroPose(),
		motion: spatialmath.NewZeroPose(),
	}, nil
}

// Init builds the reference snapshot from the first depth and color frame
// and sets the initial pose.
func (t *Tracker) Init(depthTime float64, depth *rimage.DepthMap, imgTime float64, img *rimage.GrayMap) error {
	if t.ref != nil {
		return errors.New("tracker is already initialized")
	}
	if t.config.InitialPose != nil {
		t.pose = *t.config.InitialPose
	}
	ref, err := t.makeReference(depth, img, t.pose)
	if err != nil {
		return err
	}
	t.ref = ref
	t.depthTime = depthTime
	t.imgTime = imgTime
	return nil
}

// Track performs one coarse-to-fine pose estimation step against the
// reference snapshot, then promotes the new frame to reference.
//
// When useMotionPrior is set, the optimization starts from the previous
// frame's relative motion instead of the identity (a constant velocity
// prior).
func (t *Tracker) Track(
	useMotionPrior bool,
	depthTime float64,
	depth *rimage.DepthMap,
	imgTime float64,
	img *rimage.GrayMap,
) error {
	if t.ref == nil {
		return errors.New("tracker is not initialized")
	}
	imgPyramid := rimage.MeanPyramid(t.config.Levels, img)
	if len(imgPyramid) <= len(t.ref.levels) {
		return errors.Errorf("image pyramid has %d levels, reference needs %d", len(imgPyramid), len(t.ref.levels)+1)
	}

	motion := spatialmath.NewZeroPose()
	if useMotionPrior {
		motion = t.motion
	}
	residual := 0.0
	// Coarse to fine: each converged increment seeds the next finer level.
	for i := len(t.ref.levels) - 1; i >= 0; i-- {
		level := &t.ref.levels[i]
		if !level.usable {
			continue
		}
		motion, residual = t.optimizeLevel(level, &t.ref.intrinsics[i+1], imgPyramid[i+1], motion)
	}

	t.pose = t.ref.pose.Compose(motion.Invert())
	t.motion = motion
	t.lastResidual = residual
	t.depthTime = depthTime
	t.imgTime = imgTime

	ref, err := t.makeReference(depth, img, t.pose)
	if err != nil {
		return err
	}
	t.ref = ref
	return nil
}

// CurrentFrame returns the timestamp and absolute pose of the latest frame.
func (t *Tracker) CurrentFrame() (float64, spatialmath.Pose) {
	return t.imgTime, t.pose
}

// LastResidual returns the RMS photometric residual (in intensity levels) of
// the finest optimized level of the last Track call, so callers can judge
// degraded poses.
func (t *Tracker) LastResidual() float64 {
	return t.lastResidual
}

// optimizeLevel runs Gauss-Newton at one pyramid level. The system matrix is
// the reference-side Hessian factored at snapshot time; each iteration only
// accumulates residuals, solves for the increment, and composes it into the
// motion through the exponential map.
func (t *Tracker) optimizeLevel(
	level *refLevel,
	intrinsics *transform.Intrinsics,
	img *rimage.GrayMap,
	motion spatialmath.Pose,
) (spatialmath.Pose, float64) {
	best := motion
	bestResidual := math.Inf(1)
	for iter := 0; iter < t.config.MaxIterations; iter++ {
		residual, b, n := evaluate(level.candidates, intrinsics, img, motion)
		if n == 0 {
			// Every candidate reprojected outside the image.
			break
		}
		if residual >= bestResidual {
			// Overshoot: keep the previous estimate.
			motion = best
			break
		}
		improvement := bestResidual - residual
		best, bestResidual = motion, residual
		if improvement < t.config.ConvergenceThreshold*residual {
			break
		}
		var delta mat.VecDense
		if err := level.chol.SolveVecTo(&delta, mat.NewVecDense(6, b[:])); err != nil {
			break
		}
		v := r3.Vector{X: delta.AtVec(0), Y: delta.AtVec(1), Z: delta.AtVec(2)}
		w := r3.Vector{X: delta.AtVec(3), Y: delta.AtVec(4), Z: delta.AtVec(5)}
		// Inverse compositional update: the increment warps the reference
		// side, so it composes inverted.
		motion = motion.Compose(spatialmath.NewPoseFromTangent(v, w).Invert())
	}
	return best, bestResidual
}

// evaluate accumulates the photometric residuals of all candidates under the
// given motion, along with the right-hand side of the normal equations. It
// returns the RMS residual, the accumulated gradient, and the number of
// candidates that landed inside the image.
func evaluate(
	candidates []candidate,
	intrinsics *transform.Intrinsics,
	img *rimage.GrayMap,
	motion spatialmath.Pose,
) (float64, [6]float64, int) {
	var b [6]float64
	sum := 0.0
	n := 0
	for _, c := range candidates {
		p := motion.Transform(c.point)
		if p.Z <= 0 {
			continue
		}
		projected := intrinsics.Project(p)
		sampled, ok := rimage.BilinearInterpolate(img, projected.X/projected.Z, projected.Y/projected.Z)
		if !ok {
			// Out of bounds reprojections are skipped, not errors.
			continue
		}
		r := sampled - c.intensity
		sum += r * r
		n++
		for k := range b {
			b[k] += r * c.jacobian[k]
		}
	}
	if n == 0 {
		return 0, b, 0
	}
	return math.Sqrt(sum / float64(n)), b, n
}

// makeReference builds the immutable reference snapshot of a frame:
// intensity and gradient pyramids, gradient-selected candidates, the fused
// inverse depth pyramid restricted to candidates, and the per-level
// Gauss-Newton factorizations.
func (t *Tracker) makeReference(
	depth *rimage.DepthMap,
	img *rimage.GrayMap,
	pose spatialmath.Pose,
) (*reference, error) {
	if depth.Bounds() != img.Bounds() {
		return nil, errors.Errorf("depth and image dimensions don't match Depth(%d,%d) != Image(%d,%d)",
			depth.Width(), depth.Height(), img.Width(), img.Height())
	}

	imgPyramid := rimage.MeanPyramid(t.config.Levels, img)
	if len(imgPyramid) < 2 {
		return nil, errors.Errorf("image (%d,%d) is too small to build a pyramid", img.Width(), img.Height())
	}
	gradients := rimage.GradientsXY(imgPyramid)
	gradientNorms := rimage.Gradients(imgPyramid)
	candidateMasks := rimage.SelectCandidates(gradientNorms, t.config.CandidatesThreshold)

	// Observed inverse depth lives at half resolution, where candidate
	// selection starts.
	halfDepth := rimage.Halve(depth, func(a, b, c, d rimage.Depth) rimage.Depth {
		return rimage.Depth((uint32(a) + uint32(b) + uint32(c) + uint32(d)) / 4)
	})
	idepthObserved, err := rimage.MatZip(halfDepth, candidateMasks[0],
		func(d rimage.Depth, isCandidate bool) inversedepth.InverseDepth {
			if !isCandidate {
				return inversedepth.Unknown()
			}
			return inversedepth.FromDepth(t.config.DepthScale, d, t.config.IdepthVariance)
		})
	if err != nil {
		return nil, err
	}
	idepthPyramid := inversedepth.Pyramid(len(imgPyramid)-1, idepthObserved, t.config.Fusion)

	intrinsics := t.config.Intrinsics.MultiRes(len(imgPyramid))
	ref := &reference{
		pose:       pose,
		intrinsics: intrinsics,
		levels:     make([]refLevel, len(idepthPyramid)),
	}
	for i, idepthLevel := range idepthPyramid {
		ref.levels[i] = makeRefLevel(idepthLevel, gradients[i], imgPyramid[i+1], &intrinsics[i+1])
		if t.logger != nil {
			t.logger.Debugf("reference level %d: %d candidates", i+1, len(ref.levels[i].candidates))
		}
	}
	return ref, nil
}

// makeRefLevel back-projects the valid inverse depth pixels of one level,
// computes their fixed jacobians from the reference gradients, and factors
// the Gauss-Newton system matrix.
func makeRefLevel(
	idepthLevel *rimage.Mat[inversedepth.InverseDepth],
	gradients *rimage.Mat[rimage.Gradient],
	img *rimage.GrayMap,
	intrinsics *transform.Intrinsics,
) refLevel {
	level := refLevel{}
	var hessian [6][6]float64
	for y := 0; y < idepthLevel.Height(); y++ {
		for x := 0; x < idepthLevel.Width(); x++ {
			idepth, _, ok := idepthLevel.At(x, y).Value()
			if !ok || idepth <= 0 {
				continue
			}
			point := intrinsics.BackProject(r2.Point{X: float64(x), Y: float64(y)}, 1/idepth)
			g := gradients.At(x, y)
			// Block gradients are finite differences over half a pixel at
			// this resolution, so the per-pixel gradient is twice them.
			jac := pixelJacobian(point, intrinsics, 2*float64(g.X), 2*float64(g.Y))
			level.candidates = append(level.candidates, candidate{
				point:     point,
				intensity: float64(img.At(x, y)),
				jacobian:  jac,
			})
			for r := 0; r < 6; r++ {
				for c := 0; c < 6; c++ {
					hessian[r][c] += jac[r] * jac[c]
				}
			}
		}
	}
	if len(level.candidates) < 6 {
		return level
	}
	sym := mat.NewSymDense(6, nil)
	for r := 0; r < 6; r++ {
		for c := r; c < 6; c++ {
			sym.SetSym(r, c, hessian[r][c])
		}
	}
	level.usable = level.chol.Factorize(sym)
	return level
}

// pixelJacobian is the derivative of the photometric residual with respect
// to the se3 twist (v, w) at the identity, evaluated at the reference: the
// image gradient chained with the projection derivative and the point
// velocity [I | -hat(p)].
func pixelJacobian(p r3.Vector, intrinsics *transform.Intrinsics, gx, gy float64) [6]float64 {
	fx := intrinsics.FocalLength * intrinsics.Scaling.X
	fy := intrinsics.FocalLength * intrinsics.Scaling.Y
	skew := intrinsics.Skew
	invZ := 1 / p.Z
	invZ2 := invZ * invZ

	// Derivatives of the pixel coordinates with respect to the 3D point.
	du := r3.Vector{X: fx * invZ, Y: skew * invZ, Z: -(fx*p.X + skew*p.Y) * invZ2}
	dv := r3.Vector{X: 0, Y: fy * invZ, Z: -fy * p.Y * invZ2}
	// Chain with the image gradient.
	dp := du.Mul(gx).Add(dv.Mul(gy))
	// Rotational part: d(w x p)/dw = -hat(p).
	hat := spatialmath.Hat(p)
	return [6]float64{
		dp.X,
		dp.Y,
		dp.Z,
		-(hat.At(0, 0)*dp.X + hat.At(1, 0)*dp.Y + hat.At(2, 0)*dp.Z),
		-(hat.At(0, 1)*dp.X + hat.At(1, 1)*dp.Y + hat.At(2, 1)*dp.Z),
		-(hat.At(0, 2)*dp.X + hat.At(1, 2)*dp.Y + hat.At(2, 2)*dp.Z),
	}
}
