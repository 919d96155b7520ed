package noise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestNewGaussian(t *testing.T) {
	assert := assert.New(t)

	mean := []float64{0, 0}
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	g, err := NewGaussian(mean, cov, rand.NewSource(1))
	assert.NotNil(g)
	assert.NoError(err)

	assert.Equal(mean, g.Mean())
	assert.True(mat.Equal(cov, g.Cov()))

	// mean and covariance dimensions mismatch
	g, err = NewGaussian([]float64{0, 0, 0}, cov, nil)
	assert.Nil(g)
	assert.Error(err)

	// zero covariance is not positive definite
	g, err = NewGaussian(mean, mat.NewSymDense(2, nil), nil)
	assert.Nil(g)
	assert.Error(err)

	// negative definite covariance
	g, err = NewGaussian(mean, mat.NewSymDense(2, []float64{-1, 0, 0, -1}), nil)
	assert.Nil(g)
	assert.Error(err)
}

func TestNewZeroGaussian(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{0.5, 0, 0, 0.5})

	g, err := NewZeroGaussian(cov, rand.NewSource(1))
	assert.NotNil(g)
	assert.NoError(err)
	assert.Equal([]float64{0, 0}, g.Mean())
}

func TestSample(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	g, err := NewGaussian([]float64{1, 2}, cov, rand.NewSource(42))
	assert.NoError(err)

	s := g.Sample()
	assert.Equal(2, s.Len())

	// same seed draws the same sample
	g2, err := NewGaussian([]float64{1, 2}, cov, rand.NewSource(42))
	assert.NoError(err)
	assert.True(mat.Equal(s, g2.Sample()))
}

func TestProb(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	g, err := NewZeroGaussian(cov, nil)
	assert.NoError(err)

	// standard bivariate normal density at the mean is 1/(2*pi)
	p := g.Prob(mat.NewVecDense(2, nil))
	assert.InDelta(1/(2*math.Pi), p, 1e-12)

	// density decreases away from the mean
	far := g.Prob(mat.NewVecDense(2, []float64{3, 3}))
	assert.Less(far, p)
	assert.GreaterOrEqual(far, 0.0)

	assert.InDelta(math.Log(p), g.LogProb(mat.NewVecDense(2, nil)), 1e-12)
}
