package lidarsim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

func TestNoiseModel_GaussianMoments(t *testing.T) {
	n := seeded(42)
	xs := make([]float64, 20000)
	for i := range xs {
		xs[i] = n.Gaussian()
		if math.IsNaN(xs[i]) || math.IsInf(xs[i], 0) {
			t.Fatalf("sample %d not finite: %v", i, xs[i])
		}
	}
	mean, std := stat.MeanStdDev(xs, nil)
	assert.InDelta(t, 0.0, mean, 0.05)
	assert.InDelta(t, 1.0, std, 0.05)
}

func TestNoiseModel_JitterZeroStddevIsExact(t *testing.T) {
	n := seeded(1)
	assert.Equal(t, 2.5, n.Jitter(2.5, 0))
}

func TestNoiseModel_Probabilities(t *testing.T) {
	n := seeded(7)
	for i := 0; i < 1000; i++ {
		assert.True(t, n.Dropout(1))
		assert.False(t, n.Dropout(0))
		assert.True(t, n.Ghost(1))
		assert.False(t, n.Ghost(0))
	}
}

func TestNoiseModel_GhostDepthRange(t *testing.T) {
	n := seeded(3)
	for i := 0; i < 5000; i++ {
		d := n.GhostDepth(2, 100)
		assert.GreaterOrEqual(t, d, 2.0)
		assert.Less(t, d, 100.0)
	}
}

func TestNoiseModel_Deterministic(t *testing.T) {
	a, b := seeded(99), seeded(99)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Gaussian(), b.Gaussian())
	}
}
