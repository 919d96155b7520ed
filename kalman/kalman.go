package kalman

import (
	filter "github.com/milosgajdos/go-localize"
	"gonum.org/v1/gonum/mat"
)

// Kalman is a Kalman type Bayesian filter
type Kalman interface {
	// filter.Filter is a recursive Bayesian state estimator
	filter.Filter
	// Cov returns Kalman filter state covariance
	Cov() mat.Symmetric
}
