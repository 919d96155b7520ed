package mcl

import (
	"fmt"
	"math"

	filter "github.com/milosgajdos/go-localize"
	"github.com/milosgajdos/go-localize/estimate"
	"github.com/milosgajdos/go-localize/matrix"
	"github.com/milosgajdos/go-localize/noise"
	"github.com/milosgajdos/go-localize/rand"
	"github.com/milosgajdos/go-localize/resample"
	gomatrix "github.com/milosgajdos/matrix"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// MCL is Monte Carlo Localization: a particle filter over robot poses.
// The belief is a cloud of pose hypotheses which is propagated through the
// motion model, weighted by the measurement likelihood and resampled with
// the configured resampling scheme.
type MCL struct {
	// motion is robot motion model
	motion filter.MotionModel
	// sensor is sensor measurement model
	sensor filter.MeasurementModel
	// rNoise draws zero mean process noise with covariance R
	rNoise *noise.Gaussian
	// qNoise scores innovations against the zero mean measurement
	// likelihood with covariance Q
	qNoise *noise.Gaussian
	// x stores the filter particles
	x []*mat.VecDense
	// scheme is the resampling scheme, fixed at construction
	scheme resample.Scheme
	// src is the source of randomness used for resampling draws
	src xrand.Source
}

// New creates new MCL filter with n particles and returns it.
// The particle cloud is drawn from a multivariate normal centered at the
// initial state with covariance r. It accepts the following parameters:
// - motion: robot motion model
// - sensor: sensor measurement model
// - ic:     initial belief of the filter
// - r:      process noise covariance; must be positive definite
// - q:      measurement noise covariance; must be positive definite
// - n:      number of particles
// - scheme: resampling scheme
// - src:    source of randomness; if nil the global source is used
// It returns error if the dimensions are inconsistent, n is not positive or
// either covariance is not positive definite.
func New(motion filter.MotionModel, sensor filter.MeasurementModel, ic filter.InitCond, r, q mat.Symmetric, n int, scheme resample.Scheme, src xrand.Source) (*MCL, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid particle count: %d", n)
	}

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

	rNoise, err := noise.NewZeroGaussian(r, src)
	if err != nil {
		return nil, fmt.Errorf("invalid process noise: %v", err)
	}

	qNoise, err := noise.NewZeroGaussian(q, src)
	if err != nil {
		return nil, fmt.Errorf("invalid measurement noise: %v", err)
	}

	// draw particles from a zero mean distribution with covariance r
	// and center them around the initial state
	samples, err := rand.WithCovN(r, n, src)
	if err != nil {
		return nil, fmt.Errorf("failed to generate filter particles: %v", err)
	}

	state := ic.State()
	x := make([]*mat.VecDense, n)
	for c := 0; c < n; c++ {
		p := mat.NewVecDense(nx, nil)
		for i := 0; i < nx; i++ {
			p.SetVec(i, samples.At(i, c)+state.AtVec(i))
		}
		x[c] = p
	}

	return &MCL{
		motion: motion,
		sensor: sensor,
		rNoise: rNoise,
		qNoise: qNoise,
		x:      x,
		scheme: scheme,
		src:    src,
	}, nil
}

// UpdateEstimate advances the belief by one step. A nil u skips the motion
// prediction and leaves every particle untouched; a nil or empty z skips
// weighting and resampling. Whenever measurements are supplied the whole
// particle cloud is replaced by a resampled one.
func (f *MCL) UpdateEstimate(u mat.Vector, z []mat.Vector, dt float64) error {
	if u != nil {
		if err := f.predict(u, dt); err != nil {
			return err
		}
	}

	if len(z) == 0 {
		return nil
	}

	w, err := f.weigh(z)
	if err != nil {
		return err
	}

	return f.resample(w)
}

// GaussianEstimate summarizes the particle cloud into its empirical mean and covariance.
func (f *MCL) GaussianEstimate() (filter.Estimate, error) {
	return estimate.FromParticles(f.Particles())
}

// Particles returns a copy of the filter particles.
func (f *MCL) Particles() []mat.Vector {
	p := make([]mat.Vector, len(f.x))
	for i := range f.x {
		p[i] = matrix.VecCopy(f.x[i])
	}

	return p
}

// Roughen adds zero mean jitter shaped by the empirical particle covariance
// scaled by the regularization parameter alpha to every particle. It combats
// sample impoverishment after resampling. If invalid (non-positive) alpha is
// provided the optimal bandwidth for a Gaussian kernel is used.
// It returns error if the jitter fails to be generated.
func (f *MCL) Roughen(alpha float64) error {
	rows := f.x[0].Len()
	cols := len(f.x)

	cloud := mat.NewDense(rows, cols, nil)
	for c := range f.x {
		for r := 0; r < rows; r++ {
			cloud.Set(r, c, f.x[c].AtVec(r))
		}
	}

	cov, err := gomatrix.Cov(cloud, "cols")
	if err != nil {
		return fmt.Errorf("failed to calculate particle covariance: %v", err)
	}

	jitter, err := rand.WithCovN(cov, cols, f.src)
	if err != nil {
		return fmt.Errorf("failed to draw particle perturbations: %v", err)
	}

	if alpha <= 0 {
		alpha = AlphaGauss(rows, cols)
	}

	for c := range f.x {
		for r := 0; r < rows; r++ {
			f.x[c].SetVec(r, f.x[c].AtVec(r)+alpha*jitter.At(r, c))
		}
	}

	return nil
}

// AlphaGauss computes the optimal regularization parameter for a Gaussian
// kernel over c particles of dimension r and returns it.
func AlphaGauss(r, c int) float64 {
	return math.Pow(4.0/(float64(c)*(float64(r)+2.0)), 1/(float64(r)+4.0))
}

// predict propagates every particle through the motion model and adds
// independent zero mean process noise to each.
func (f *MCL) predict(u mat.Vector, dt float64) error {
	for i, p := range f.x {
		xNext, err := f.motion.Predict(p, u, dt)
		if err != nil {
			return fmt.Errorf("particle state propagation failed: %v", err)
		}

		next := matrix.VecCopy(xNext)
		next.AddVec(next, f.rNoise.Sample())
		f.x[i] = next
	}

	return nil
}

// weigh computes fresh importance weights for the particle cloud: every
// weight starts at 1 and accumulates the measurement likelihood of each
// measurement in the batch multiplicatively.
func (f *MCL) weigh(z []mat.Vector) ([]float64, error) {
	w := make([]float64, len(f.x))
	for i := range w {
		w[i] = 1.0
	}

	inn := &mat.VecDense{}
	for _, zi := range z {
		for i, p := range f.x {
			zPred, err := f.sensor.Predict(p, nil)
			if err != nil {
				return nil, fmt.Errorf("particle measurement prediction failed: %v", err)
			}

			inn.SubVec(zi, zPred)
			w[i] *= f.qNoise.Prob(inn)
		}
	}

	return w, nil
}

// resample replaces the whole particle cloud with a new one drawn
// proportionally to the importance weights w.
func (f *MCL) resample(w []float64) error {
	indices, err := f.scheme.Indices(w, f.src)
	if err != nil {
		return fmt.Errorf("failed to resample filter particles: %v", err)
	}

	x := make([]*mat.VecDense, len(indices))
	for i, idx := range indices {
		x[i] = matrix.VecCopy(f.x[idx])
	}
	f.x = x

	return nil
}
