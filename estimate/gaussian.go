package estimate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Gaussian is a Gaussian state estimate: a mean vector with its covariance.
type Gaussian struct {
	// val is estimated value
	val *mat.VecDense
	// cov is estimated covariance
	cov *mat.SymDense
}

// NewGaussian returns Gaussian estimate with given value and covariance.
// It returns error if the value and covariance dimensions do not match.
func NewGaussian(val mat.Vector, cov mat.Symmetric) (*Gaussian, error) {
	if val.Len() != cov.SymmetricDim() {
		return nil, fmt.Errorf("invalid dimensions: val %d, cov %d x %d", val.Len(), cov.SymmetricDim(), cov.SymmetricDim())
	}

	v := &mat.VecDense{}
	v.CloneFromVec(val)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &Gaussian{
		val: v,
		cov: c,
	}, nil
}

// FromParticles summarizes a particle cloud into a Gaussian estimate:
// the empirical mean of the particles and their biased (divide by N)
// empirical covariance. It returns error if particles is empty or if
// the particles do not share the same dimension.
func FromParticles(particles []mat.Vector) (*Gaussian, error) {
	if len(particles) == 0 {
		return nil, fmt.Errorf("no particles supplied")
	}

	n := float64(len(particles))
	dim := particles[0].Len()

	mean := mat.NewVecDense(dim, nil)
	for _, p := range particles {
		if p.Len() != dim {
			return nil, fmt.Errorf("invalid particle dimension: %d != %d", p.Len(), dim)
		}
		mean.AddVec(mean, p)
	}
	mean.ScaleVec(1/n, mean)

	dx := mat.NewVecDense(dim, nil)
	cov := mat.NewDense(dim, dim, nil)
	outer := mat.NewDense(dim, dim, nil)
	for _, p := range particles {
		dx.SubVec(p, mean)
		outer.Outer(1.0, dx, dx)
		cov.Add(cov, outer)
	}
	cov.Scale(1/n, cov)

	c := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			c.SetSym(i, j, cov.At(i, j))
		}
	}

	return &Gaussian{
		val: mean,
		cov: c,
	}, nil
}

// Val returns estimated value
func (g *Gaussian) Val() mat.Vector {
	v := &mat.VecDense{}
	v.CloneFromVec(g.val)

	return v
}

// Cov returns covariance estimate
func (g *Gaussian) Cov() mat.Symmetric {
	cov := mat.NewSymDense(g.cov.SymmetricDim(), nil)
	cov.CopySym(g.cov)

	return cov
}
