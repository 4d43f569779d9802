// Package inversedepth models per-pixel inverse depth estimates and the
// fusion strategies that merge independent observations when building a
// coarser depth pyramid level from four finer ones.
//
// Inverse depth (the reciprocal of metric distance along the camera ray) is
// the preferred parameterization for depth uncertainty: its estimation
// variance behaves more linearly than metric depth, especially at long range.
package inversedepth

import "github.com/mpizenberg/vors/rimage"

type status uint8

const (
	statusUnknown status = iota
	statusDiscarded
	statusKnown
)

// InverseDepth is a tagged per-pixel depth state: no observation, an
// observation judged inconsistent, or a valid estimate with its variance.
// Missing-ness is explicit so it can never be confused with a valid zero
// measurement.
type InverseDepth struct {
	status   status
	idepth   float64
	variance float64
}

// Unknown returns the no-observation state. The zero value of InverseDepth
// is Unknown as well.
func Unknown() InverseDepth {
	return InverseDepth{}
}

// Discarded returns the state of a pixel whose observations were judged
// mutually inconsistent.
func Discarded() InverseDepth {
	return InverseDepth{status: statusDiscarded}
}

// WithVariance returns a valid inverse depth estimate with its (positive)
// uncertainty.
func WithVariance(idepth, variance float64) InverseDepth {
	return InverseDepth{status: statusKnown, idepth: idepth, variance: variance}
}

// IsKnown reports whether the state carries a valid estimate.
func (id InverseDepth) IsKnown() bool {
	return id.status == statusKnown
}

// IsDiscarded reports whether the observations at this pixel were judged
// inconsistent.
func (id InverseDepth) IsDiscarded() bool {
	return id.status == statusDiscarded
}

// Value returns the inverse depth estimate and its variance. The boolean is
// false for Unknown and Discarded states, whose numeric values carry no
// meaning.
func (id InverseDepth) Value() (idepth, variance float64, ok bool) {
	return id.idepth, id.variance, id.status == statusKnown
}

// FromDepth converts a raw scaled depth reading into an inverse depth state:
// Unknown when the sensor reported no depth, otherwise scale/raw with the
// assumed variance of a fresh observation.
func FromDepth(scale float64, depth rimage.Depth, variance float64) InverseDepth {
	if depth == 0 {
		return Unknown()
	}
	return WithVariance(scale/float64(depth), variance)
}

// Observation is one valid (inverse depth, variance) sample handed to a
// fusion strategy.
type Observation struct {
	Idepth   float64
	Variance float64
}

// Strategy merges the valid observations of a 2x2 block into the state of
// the parent pixel. Implementations must be pure functions of their input so
// they stay interchangeable behind configuration.
type Strategy interface {
	// Fuse receives between 1 and 4 observations.
	Fuse(obs []Observation) InverseDepth
}

// Fuse merges four child states into a parent state using the given
// strategy. The strategy only sees valid observations; when there are none
// the parent is Unknown.
func Fuse(a, b, c, d InverseDepth, strategy Strategy) InverseDepth {
	obs := make([]Observation, 0, 4)
	for _, child := range [4]InverseDepth{a, b, c, d} {
		if idepth, variance, ok := child.Value(); ok {
			obs = append(obs, Observation{Idepth: idepth, Variance: variance})
		}
	}
	if len(obs) == 0 {
		return Unknown()
	}
	return strategy.Fuse(obs)
}

// Pyramid builds an inverse depth pyramid of at most maxLevels levels by
// repeatedly fusing 2x2 blocks with the given strategy.
func Pyramid(maxLevels int, m *rimage.Mat[InverseDepth], strategy Strategy) []*rimage.Mat[InverseDepth] {
	return rimage.LimitedSequence(maxLevels, m, func(last *rimage.Mat[InverseDepth]) *rimage.Mat[InverseDepth] {
		return rimage.Halve(last, func(a, b, c, d InverseDepth) InverseDepth {
			return Fuse(a, b, c, d, strategy)
		})
	})
}
