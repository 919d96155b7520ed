package ekf

import (
	"fmt"

	filter "github.com/milosgajdos/go-localize"
	"github.com/milosgajdos/go-localize/estimate"
	"github.com/milosgajdos/go-localize/matrix"
	"gonum.org/v1/gonum/mat"
)

// EKF is Extended Kalman Filter: a single Gaussian belief propagated through
// local linearization of the motion and measurement models.
type EKF struct {
	// motion is robot motion model
	motion filter.MotionModel
	// sensor is sensor measurement model
	sensor filter.MeasurementModel
	// r is process noise covariance
	r *mat.SymDense
	// q is measurement noise covariance
	q *mat.SymDense
	// x is belief mean
	x *mat.VecDense
	// p is belief covariance
	p *mat.SymDense
}

// New creates new EKF and returns it.
// It accepts the following parameters:
// - motion: robot motion model
// - sensor: sensor measurement model
// - ic:     initial belief of the filter
// - r:      process noise covariance; its dimension must match the state
// - q:      measurement noise covariance; its dimension must match the observation
// It returns error if the model and noise dimensions are inconsistent.
func New(motion filter.MotionModel, sensor filter.MeasurementModel, ic filter.InitCond, r, q mat.Symmetric) (*EKF, error) {
	nx, _ := motion.Dims()
	sx, nz := sensor.Dims()

	if nx <= 0 || nz <= 0 {
		return nil, fmt.Errorf("invalid model dimensions: [%d x %d]", nx, nz)
	}

	if sx != nx {
		return nil, fmt.Errorf("motion and measurement model state dimensions mismatch: %d != %d", nx, sx)
	}

	if r == nil || r.SymmetricDim() != nx {
		return nil, fmt.Errorf("invalid process noise covariance: %v", r)
	}

	if q == nil || q.SymmetricDim() != nz {
		return nil, fmt.Errorf("invalid measurement noise covariance: %v", q)
	}

	if ic.State().Len() != nx {
		return nil, fmt.Errorf("invalid initial state dimension: %d", ic.State().Len())
	}

	return &EKF{
		motion: motion,
		sensor: sensor,
		r:      matrix.SymCopy(r),
		q:      matrix.SymCopy(q),
		x:      matrix.VecCopy(ic.State()),
		p:      matrix.SymCopy(ic.Cov()),
	}, nil
}

// UpdateEstimate advances the belief by one step. A nil u skips the motion
// prediction; a nil or empty z skips the correction. Each measurement in z is
// folded into the belief sequentially. If any step fails, e.g. due to a
// singular innovation covariance, the error is returned and the prior belief
// is left intact.
func (k *EKF) UpdateEstimate(u mat.Vector, z []mat.Vector, dt float64) error {
	x := matrix.VecCopy(k.x)
	p := &mat.Dense{}
	p.CloneFrom(k.p)

	if u != nil {
		if err := k.predict(x, p, u, dt); err != nil {
			return err
		}
	}

	for _, zi := range z {
		if err := k.correct(x, p, zi, nil); err != nil {
			return err
		}
	}

	k.x = x
	k.p = matrix.ToSym(p)

	return nil
}

// GaussianEstimate returns the current belief mean and covariance.
func (k *EKF) GaussianEstimate() (filter.Estimate, error) {
	return estimate.NewGaussian(k.x, k.p)
}

// Cov returns EKF covariance
func (k *EKF) Cov() mat.Symmetric {
	return matrix.SymCopy(k.p)
}

// SetCov sets EKF covariance matrix to cov.
// It returns error if either cov is nil or its dimensions differ from the EKF covariance dimensions.
func (k *EKF) SetCov(cov mat.Symmetric) error {
	if cov == nil {
		return fmt.Errorf("invalid covariance matrix: %v", cov)
	}

	if cov.SymmetricDim() != k.p.SymmetricDim() {
		return fmt.Errorf("invalid covariance matrix dims: [%d x %d]", cov.SymmetricDim(), cov.SymmetricDim())
	}

	k.p.CopySym(cov)

	return nil
}

// predict propagates the belief mean and covariance in place:
// x = motion.Predict(x, u, dt); P = G*P*G' + R
func (k *EKF) predict(x *mat.VecDense, p *mat.Dense, u mat.Vector, dt float64) error {
	g, err := k.motion.StateJacobian(x, u, dt)
	if err != nil {
		return fmt.Errorf("failed to linearize motion model: %v", err)
	}

	xNext, err := k.motion.Predict(x, u, dt)
	if err != nil {
		return fmt.Errorf("state propagation failed: %v", err)
	}

	cov := &mat.Dense{}
	cov.Mul(g, p)
	cov.Mul(cov, g.T())
	cov.Add(cov, k.r)

	x.CopyVec(xNext)
	p.Copy(cov)

	return nil
}

// correct folds a single measurement into the belief mean and covariance in place.
// It returns error if the innovation covariance is singular.
func (k *EKF) correct(x *mat.VecDense, p *mat.Dense, z, landmark mat.Vector) error {
	h, err := k.sensor.Jacobian(x, landmark)
	if err != nil {
		return fmt.Errorf("failed to linearize measurement model: %v", err)
	}

	zPred, err := k.sensor.Predict(x, landmark)
	if err != nil {
		return fmt.Errorf("measurement prediction failed: %v", err)
	}

	if z.Len() != zPred.Len() {
		return fmt.Errorf("invalid measurement size: %d", z.Len())
	}

	// P*H'
	pht := &mat.Dense{}
	pht.Mul(p, h.T())

	// innovation covariance: H*P*H' + Q
	sInn := &mat.Dense{}
	sInn.Mul(h, pht)
	sInn.Add(sInn, k.q)

	sInv := &mat.Dense{}
	if err := sInv.Inverse(sInn); err != nil {
		return fmt.Errorf("singular innovation covariance: %v", err)
	}

	// Kalman gain: P*H'*S^-1
	gain := &mat.Dense{}
	gain.Mul(pht, sInv)

	inn := &mat.VecDense{}
	inn.SubVec(z, zPred)

	corr := &mat.VecDense{}
	corr.MulVec(gain, inn)
	x.AddVec(x, corr)

	// P = (I - K*H) * P
	kh := &mat.Dense{}
	kh.Mul(gain, h)
	a := &mat.Dense{}
	a.Sub(matrix.Eye(x.Len()), kh)

	pCorr := &mat.Dense{}
	pCorr.Mul(a, p)
	p.Copy(pCorr)

	return nil
}
