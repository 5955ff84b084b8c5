package lidarsim

import (
	"math"
	"math/rand"
)

// NoiseModel draws every random quantity used by a sweep from one seeded
// source, so a run is reproducible from its seed.
type NoiseModel struct {
	rng *rand.Rand
}

// NewNoiseModel wraps rng. A nil rng is replaced with a source seeded with 1.
func NewNoiseModel(rng *rand.Rand) *NoiseModel {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &NoiseModel{rng: rng}
}

// uniform returns a sample in (0,1].
func (n *NoiseModel) uniform() float64 {
	return 1 - n.rng.Float64()
}

// Gaussian returns a zero-mean unit-variance sample using the Box–Muller
// transform.
func (n *NoiseModel) Gaussian() float64 {
	u1 := n.uniform()
	u2 := n.uniform()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Jitter returns nominal perturbed by a normal sample with the given
// standard deviation. No sample is drawn when stddev is zero.
func (n *NoiseModel) Jitter(nominal, stddev float64) float64 {
	if stddev == 0 {
		return nominal
	}
	return nominal + n.Gaussian()*stddev
}

// Dropout reports whether a beam is lost before casting.
func (n *NoiseModel) Dropout(p float64) bool {
	return n.rng.Float64() < p
}

// Ghost reports whether a missed beam produces a spurious return.
func (n *NoiseModel) Ghost(p float64) bool {
	return n.rng.Float64() < p
}

// GhostDepth returns a depth in [lo, hi).
func (n *NoiseModel) GhostDepth(lo, hi float64) float64 {
	return lo + n.rng.Float64()*(hi-lo)
}
