package mcl

import (
	"fmt"

	filter "github.com/milosgajdos/go-localize"
	"github.com/milosgajdos/go-localize/estimate"
	"github.com/milosgajdos/go-localize/matrix"
	"github.com/milosgajdos/go-localize/noise"
	"github.com/milosgajdos/go-localize/rand"
	"github.com/milosgajdos/go-localize/resample"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// KnownCorrespondence is Monte Carlo Localization with known measurement
// correspondences: each measurement carries the identity of its source
// landmark. Only measurements whose identifier is present in the landmark
// table contribute weight; the rest are silently skipped.
type KnownCorrespondence struct {
	// motion is robot motion model
	motion filter.MotionModel
	// sensor is sensor measurement model
	sensor filter.MeasurementModel
	// landmarks maps landmark identifiers to their known positions.
	// The table is fixed at construction.
	landmarks map[int]*mat.VecDense
	// rNoise draws zero mean process noise with covariance R.
	// It is only used when the motion model is not a filter.MotionSampler.
	rNoise *noise.Gaussian
	// qNoise scores innovations against the zero mean measurement
	// likelihood with covariance Q
	qNoise *noise.Gaussian
	// x stores the filter particles
	x []*mat.VecDense
	// src is the source of randomness used for resampling draws
	src xrand.Source
}

// NewKnownCorrespondence creates new KnownCorrespondence MCL filter with n
// particles and returns it. landmarks maps landmark identifiers to their
// known positions; the table is copied and never modified by the filter.
// If motion implements filter.MotionSampler the prediction step uses its
// Sample method, otherwise zero mean noise with covariance r is added to
// every predicted particle. It returns error if the dimensions are
// inconsistent, n is not positive or either covariance is not positive definite.
func NewKnownCorrespondence(motion filter.MotionModel, sensor filter.MeasurementModel, landmarks map[int]mat.Vector, ic filter.InitCond, r, q mat.Symmetric, n int, src xrand.Source) (*KnownCorrespondence, error) {
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

	lm := make(map[int]*mat.VecDense, len(landmarks))
	for id, pos := range landmarks {
		if pos == nil {
			return nil, fmt.Errorf("invalid landmark position: %d", id)
		}
		lm[id] = matrix.VecCopy(pos)
	}

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

	return &KnownCorrespondence{
		motion:    motion,
		sensor:    sensor,
		landmarks: lm,
		rNoise:    rNoise,
		qNoise:    qNoise,
		x:         x,
		src:       src,
	}, nil
}

// UpdateEstimate advances the belief by one step. A nil u skips the motion
// prediction; a nil or empty z skips weighting and resampling. Measurements
// tagged with an identifier missing from the landmark table contribute
// nothing: a batch with no table hits leaves the particle cloud untouched.
func (f *KnownCorrespondence) UpdateEstimate(u mat.Vector, z []filter.TaggedMeasurement, dt float64) error {
	if u != nil {
		if err := f.predict(u, dt); err != nil {
			return err
		}
	}

	if len(z) == 0 {
		return nil
	}

	w := make([]float64, len(f.x))
	for i := range w {
		w[i] = 1.0
	}

	matched := 0
	inn := &mat.VecDense{}
	for _, m := range z {
		landmark, ok := f.landmarks[m.ID]
		if !ok {
			continue
		}
		matched++

		for i, p := range f.x {
			zPred, err := f.sensor.Predict(p, landmark)
			if err != nil {
				return fmt.Errorf("particle measurement prediction failed: %v", err)
			}

			inn.SubVec(m.Z, zPred)
			w[i] *= f.qNoise.Prob(inn)
		}
	}

	if matched == 0 {
		return nil
	}

	indices, err := resample.Multinomial(w, f.src)
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

// GaussianEstimate summarizes the particle cloud into its empirical mean and covariance.
func (f *KnownCorrespondence) GaussianEstimate() (filter.Estimate, error) {
	return estimate.FromParticles(f.Particles())
}

// Particles returns a copy of the filter particles.
func (f *KnownCorrespondence) Particles() []mat.Vector {
	p := make([]mat.Vector, len(f.x))
	for i := range f.x {
		p[i] = matrix.VecCopy(f.x[i])
	}

	return p
}

// predict propagates every particle through the motion model. If the model
// is a filter.MotionSampler the noise is folded in by the model itself,
// otherwise independent zero mean process noise is added to each particle.
func (f *KnownCorrespondence) predict(u mat.Vector, dt float64) error {
	sampler, ok := f.motion.(filter.MotionSampler)

	for i, p := range f.x {
		var xNext mat.Vector
		var err error

		if ok {
			xNext, err = sampler.Sample(p, u, dt)
		} else {
			xNext, err = f.motion.Predict(p, u, dt)
		}
		if err != nil {
			return fmt.Errorf("particle state propagation failed: %v", err)
		}

		next := matrix.VecCopy(xNext)
		if !ok {
			next.AddVec(next, f.rNoise.Sample())
		}
		f.x[i] = next
	}

	return nil
}
