package filter

import "gonum.org/v1/gonum/mat"

// Filter is a recursive Bayesian state estimator.
// One call to UpdateEstimate advances the belief by a single time step.
type Filter interface {
	// UpdateEstimate advances the belief given control input u, a batch of
	// measurements z and elapsed time dt. A nil u skips the prediction step;
	// a nil or empty z skips the correction step.
	UpdateEstimate(u mat.Vector, z []mat.Vector, dt float64) error
	// GaussianEstimate returns a Gaussian snapshot of the current belief.
	// It never mutates the belief: repeated calls return the same estimate.
	GaussianEstimate() (Estimate, error)
}

// TaggedMeasurement is a measurement carrying the identity of its source landmark.
type TaggedMeasurement struct {
	// ID identifies the observed landmark
	ID int
	// Z is the measurement vector
	Z mat.Vector
}

// KnownCorrespondenceFilter is a Bayesian estimator whose measurements carry
// explicit landmark identities, bypassing data association.
// Measurements tagged with an identifier missing from the filter landmark
// table are silently skipped.
type KnownCorrespondenceFilter interface {
	// UpdateEstimate advances the belief given control input u, a batch of
	// tagged measurements z and elapsed time dt. A nil u skips the prediction
	// step; a nil or empty z skips the correction step.
	UpdateEstimate(u mat.Vector, z []TaggedMeasurement, dt float64) error
	// GaussianEstimate returns a Gaussian snapshot of the current belief.
	GaussianEstimate() (Estimate, error)
}

// MotionModel models robot state transition dynamics.
type MotionModel interface {
	// Predict propagates state x under control u over time dt
	Predict(x, u mat.Vector, dt float64) (mat.Vector, error)
	// StateJacobian returns the jacobian of Predict with respect to state x
	StateJacobian(x, u mat.Vector, dt float64) (mat.Matrix, error)
	// Dims returns state and control input dimensions of the model
	Dims() (nx, nu int)
}

// MotionSampler is a motion model which can draw the next state
// with its process noise already folded in.
type MotionSampler interface {
	MotionModel
	// Sample draws a noisy next state given state x and control u
	Sample(x, u mat.Vector, dt float64) (mat.Vector, error)
}

// MeasurementModel models sensor observations.
type MeasurementModel interface {
	// Predict returns the expected observation from state x.
	// landmark is the observed landmark position; it may be nil for
	// models which do not observe landmarks.
	Predict(x, landmark mat.Vector) (mat.Vector, error)
	// Jacobian returns the jacobian of Predict with respect to state x
	Jacobian(x, landmark mat.Vector) (mat.Matrix, error)
	// Dims returns state and observation dimensions of the model
	Dims() (nx, nz int)
}

// FeatureModel is a measurement model which can also initialize and
// linearize landmark estimates. It is required by map-building filters.
type FeatureModel interface {
	MeasurementModel
	// InitFeature returns the landmark position implied by observing z from
	// state x i.e. the inverse of Predict
	InitFeature(x, z mat.Vector) (mat.Vector, error)
	// FeatureJacobian returns the jacobian of Predict with respect to the landmark
	FeatureJacobian(x, landmark mat.Vector) (mat.Matrix, error)
}

// InitCond is initial state condition of a filter
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Estimate is a Gaussian state estimate
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}
