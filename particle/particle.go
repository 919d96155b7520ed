package particle

import (
	filter "github.com/milosgajdos/go-localize"
	"gonum.org/v1/gonum/mat"
)

// Filter is a particle based Bayesian filter: its belief is represented by a
// cloud of pose hypotheses rather than a single Gaussian.
type Filter interface {
	// filter.Filter is a recursive Bayesian state estimator
	filter.Filter
	// Particles returns a copy of the filter particles
	Particles() []mat.Vector
}
