package noise

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian is a multivariate normal distribution.
// It is the sampling and density primitive used by all the filters.
type Gaussian struct {
	// dist is the underlying multivariate normal distribution
	dist *distmv.Normal
	// mean is Gaussian mean
	mean []float64
	// cov is Gaussian covariance
	cov *mat.SymDense
}

// NewGaussian creates new Gaussian distribution with given mean and covariance.
// src is the source of randomness used when sampling; if src is nil the global
// source is used. It returns error if cov is not positive definite or if the
// mean and covariance dimensions do not match.
func NewGaussian(mean []float64, cov mat.Symmetric, src rand.Source) (*Gaussian, error) {
	if len(mean) != cov.SymmetricDim() {
		return nil, fmt.Errorf("invalid dimensions: mean %d, cov %d x %d", len(mean), cov.SymmetricDim(), cov.SymmetricDim())
	}

	dist, ok := distmv.NewNormal(mean, cov, src)
	if !ok {
		return nil, fmt.Errorf("covariance matrix is not positive definite")
	}

	m := make([]float64, len(mean))
	copy(m, mean)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &Gaussian{
		dist: dist,
		mean: m,
		cov:  c,
	}, nil
}

// NewZeroGaussian creates new zero mean Gaussian distribution with covariance cov.
// It returns error if cov is not positive definite.
func NewZeroGaussian(cov mat.Symmetric, src rand.Source) (*Gaussian, error) {
	return NewGaussian(make([]float64, cov.SymmetricDim()), cov, src)
}

// Sample draws a random vector from the distribution and returns it.
func (g *Gaussian) Sample() mat.Vector {
	r := g.dist.Rand(nil)
	return mat.NewVecDense(len(r), r)
}

// Prob returns the density of the distribution at v.
func (g *Gaussian) Prob(v mat.Vector) float64 {
	x := make([]float64, v.Len())
	for i := range x {
		x[i] = v.AtVec(i)
	}

	return math.Exp(g.dist.LogProb(x))
}

// LogProb returns the log-density of the distribution at v.
func (g *Gaussian) LogProb(v mat.Vector) float64 {
	x := make([]float64, v.Len())
	for i := range x {
		x[i] = v.AtVec(i)
	}

	return g.dist.LogProb(x)
}

// Cov returns covariance matrix of the distribution.
func (g *Gaussian) Cov() mat.Symmetric {
	cov := mat.NewSymDense(g.cov.SymmetricDim(), nil)
	cov.CopySym(g.cov)

	return cov
}

// Mean returns Gaussian mean.
func (g *Gaussian) Mean() []float64 {
	mean := make([]float64, len(g.mean))
	copy(mean, g.mean)

	return mean
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nMean=%v\nCov=%v\n}", g.mean, mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}
