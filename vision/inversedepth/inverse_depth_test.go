package inversedepth

import (
	"testing"

	"go.viam.com/test"

	"github.com/mpizenberg/vors/rimage"
)

func TestStates(t *testing.T) {
	var zero InverseDepth
	test.That(t, zero.IsKnown(), test.ShouldBeFalse)
	test.That(t, zero.IsDiscarded(), test.ShouldBeFalse)
	test.That(t, zero, test.ShouldResemble, Unknown())

	discarded := Discarded()
	test.That(t, discarded.IsKnown(), test.ShouldBeFalse)
	test.That(t, discarded.IsDiscarded(), test.ShouldBeTrue)

	known := WithVariance(0.5, 1e-4)
	test.That(t, known.IsKnown(), test.ShouldBeTrue)
	idepth, variance, ok := known.Value()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, idepth, test.ShouldAlmostEqual, 0.5)
	test.That(t, variance, test.ShouldAlmostEqual, 1e-4)
}

func TestFromDepth(t *testing.T) {
	// 5000 raw units per meter: a raw reading of 10000 is 2m away, so the
	// inverse depth is 0.5.
	id := FromDepth(5000, 10000, 1e-4)
	idepth, variance, ok := id.Value()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, idepth, test.ShouldAlmostEqual, 0.5)
	test.That(t, variance, test.ShouldAlmostEqual, 1e-4)

	// Zero raw depth means no observation, not zero distance.
	test.That(t, FromDepth(5000, 0, 1e-4), test.ShouldResemble, Unknown())
}

func TestFuseNoObservations(t *testing.T) {
	fused := Fuse(Unknown(), Unknown(), Discarded(), Unknown(), DSOMean{})
	test.That(t, fused, test.ShouldResemble, Unknown())
}

func TestDSOMeanAgreement(t *testing.T) {
	child := WithVariance(0.5, 1e-4)
	fused := Fuse(child, child, child, child, DSOMean{})
	idepth, variance, ok := fused.Value()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, idepth, test.ShouldAlmostEqual, 0.5)
	// Averaging reduces variance.
	test.That(t, variance, test.ShouldBeLessThan, 1e-4)
	test.That(t, variance, test.ShouldAlmostEqual, 1e-4/4)
}

func TestDSOMeanDisagreement(t *testing.T) {
	fused := Fuse(
		WithVariance(1, 1e-4),
		WithVariance(2, 1e-4),
		WithVariance(3, 1e-4),
		WithVariance(100, 1e-4),
		DSOMean{},
	)
	test.That(t, fused.IsDiscarded(), test.ShouldBeTrue)
}

func TestStatisticallySimilarIgnoresOutlier(t *testing.T) {
	fused := Fuse(
		WithVariance(0.50, 1e-4),
		WithVariance(0.51, 1e-4),
		WithVariance(0.49, 1e-4),
		WithVariance(5.0, 1e-4),
		StatisticallySimilar{},
	)
	idepth, variance, ok := fused.Value()
	test.That(t, ok, test.ShouldBeTrue)
	// The three agreeing children drive the estimate, the outlier is ignored.
	test.That(t, idepth, test.ShouldAlmostEqual, 0.5, 1e-2)
	test.That(t, idepth, test.ShouldBeLessThan, 1.0)
	test.That(t, variance, test.ShouldAlmostEqual, 1e-4/3)
}

func TestRandomPicksAChild(t *testing.T) {
	children := []InverseDepth{
		WithVariance(1, 1e-4),
		WithVariance(2, 1e-4),
		WithVariance(3, 1e-4),
		WithVariance(4, 1e-4),
	}
	strategy := NewRandom(1)
	seen := map[float64]bool{}
	for i := 0; i < 100; i++ {
		fused := Fuse(children[0], children[1], children[2], children[3], strategy)
		idepth, _, ok := fused.Value()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, idepth, test.ShouldBeGreaterThanOrEqualTo, 1)
		test.That(t, idepth, test.ShouldBeLessThanOrEqualTo, 4)
		seen[idepth] = true
	}
	// Uniform picking over 100 draws should have seen every child.
	test.That(t, len(seen), test.ShouldEqual, 4)
}

func TestNewStrategy(t *testing.T) {
	for _, name := range []string{"dso-mean", "statistically-similar", "random"} {
		s, err := NewStrategy(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s, test.ShouldNotBeNil)
	}
	_, err := NewStrategy("nope")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPyramid(t *testing.T) {
	m := rimage.NewMat[InverseDepth](4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			m.Set(x, y, WithVariance(0.5, 1e-4))
		}
	}
	pyramid := Pyramid(3, m, DSOMean{})
	test.That(t, pyramid, test.ShouldHaveLength, 3)
	test.That(t, pyramid[2].Width(), test.ShouldEqual, 1)
	idepth, _, ok := pyramid[2].At(0, 0).Value()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, idepth, test.ShouldAlmostEqual, 0.5)
}
