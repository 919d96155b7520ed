package fastslam

import (
	"fmt"
	"math"

	filter "github.com/milosgajdos/go-localize"
	"github.com/milosgajdos/go-localize/estimate"
	"github.com/milosgajdos/go-localize/matrix"
	"github.com/milosgajdos/go-localize/noise"
	"github.com/milosgajdos/go-localize/rand"
	"github.com/milosgajdos/go-localize/resample"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Feature is a single landmark estimate owned by one particle: a mean
// position, its covariance and the logarithmic existence weight accumulated
// over the sightings of the landmark.
type Feature struct {
	// mean is estimated landmark position
	mean *mat.VecDense
	// cov is landmark position covariance
	cov *mat.SymDense
	// logWeight is the accumulated log likelihood of the landmark sightings
	logWeight float64
}

// Mean returns estimated landmark position
func (ft *Feature) Mean() mat.Vector {
	return matrix.VecCopy(ft.mean)
}

// Cov returns landmark position covariance
func (ft *Feature) Cov() mat.Symmetric {
	return matrix.SymCopy(ft.cov)
}

// LogWeight returns the accumulated log likelihood of the landmark sightings
func (ft *Feature) LogWeight() float64 {
	return ft.logWeight
}

func (ft *Feature) clone() *Feature {
	return &Feature{
		mean:      matrix.VecCopy(ft.mean),
		cov:       matrix.SymCopy(ft.cov),
		logWeight: ft.logWeight,
	}
}

// Particle is one joint pose and map hypothesis. Every particle owns its
// feature map exclusively: no feature is ever shared between particles.
type Particle struct {
	// pose is the particle pose hypothesis
	pose *mat.VecDense
	// features maps landmark identifiers to their per particle estimates
	features map[int]*Feature
}

// Pose returns the particle pose hypothesis
func (p *Particle) Pose() mat.Vector {
	return matrix.VecCopy(p.pose)
}

// Feature returns a copy of the particle estimate of landmark id.
// The second return value reports whether the particle has seen the landmark.
func (p *Particle) Feature(id int) (*Feature, bool) {
	ft, ok := p.features[id]
	if !ok {
		return nil, false
	}

	return ft.clone(), true
}

// FeatureIDs returns the identifiers of all landmarks the particle has seen.
func (p *Particle) FeatureIDs() []int {
	ids := make([]int, 0, len(p.features))
	for id := range p.features {
		ids = append(ids, id)
	}

	return ids
}

func (p *Particle) clone() *Particle {
	features := make(map[int]*Feature, len(p.features))
	for id, ft := range p.features {
		features[id] = ft.clone()
	}

	return &Particle{
		pose:     matrix.VecCopy(p.pose),
		features: features,
	}
}

// FastSLAM is a particle filter which estimates the robot pose and the
// landmark map jointly: every particle owns an independent feature map and
// each feature is maintained by its own small EKF. Measurement identities
// are assumed resolved upstream, so measurements arrive tagged.
type FastSLAM struct {
	// motion is robot motion model
	motion filter.MotionModel
	// sensor is sensor measurement model with feature capabilities
	sensor filter.FeatureModel
	// rNoise draws zero mean process noise with covariance R.
	// It is only used when the motion model is not a filter.MotionSampler.
	rNoise *noise.Gaussian
	// qNoise scores innovations against the zero mean measurement
	// likelihood with covariance Q
	qNoise *noise.Gaussian
	// q is measurement noise covariance
	q *mat.SymDense
	// particles stores the joint pose and map hypotheses
	particles []*Particle
	// scheme is the resampling scheme, fixed at construction
	scheme resample.Scheme
	// src is the source of randomness used for resampling draws
	src xrand.Source
}

// New creates new FastSLAM filter with n particles and returns it.
// Particle poses are drawn from a multivariate normal centered at the
// initial state with covariance r; every particle starts with an empty map.
// It accepts the following parameters:
// - motion: robot motion model
// - sensor: sensor measurement model with feature capabilities
// - ic:     initial belief of the filter
// - r:      process noise covariance; must be positive definite
// - q:      measurement noise covariance; must be positive definite
// - n:      number of particles
// - scheme: resampling scheme
// - src:    source of randomness; if nil the global source is used
// It returns error if the dimensions are inconsistent, n is not positive or
// either covariance is not positive definite.
func New(motion filter.MotionModel, sensor filter.FeatureModel, ic filter.InitCond, r, q mat.Symmetric, n int, scheme resample.Scheme, src xrand.Source) (*FastSLAM, error) {
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

	samples, err := rand.WithCovN(r, n, src)
	if err != nil {
		return nil, fmt.Errorf("failed to generate filter particles: %v", err)
	}

	state := ic.State()
	particles := make([]*Particle, n)
	for c := 0; c < n; c++ {
		pose := mat.NewVecDense(nx, nil)
		for i := 0; i < nx; i++ {
			pose.SetVec(i, samples.At(i, c)+state.AtVec(i))
		}
		particles[c] = &Particle{
			pose:     pose,
			features: make(map[int]*Feature),
		}
	}

	return &FastSLAM{
		motion:    motion,
		sensor:    sensor,
		rNoise:    rNoise,
		qNoise:    qNoise,
		q:         matrix.SymCopy(q),
		particles: particles,
		scheme:    scheme,
		src:       src,
	}, nil
}

// UpdateEstimate advances the belief by one step. A nil u skips the motion
// prediction; a nil or empty z skips the map update and resampling. The first
// sighting of a landmark initializes a new map entry in the observing
// particle; subsequent sightings run a per feature EKF correction and fold
// the measurement likelihood into the particle weight. Whenever measurements
// are supplied the whole particle collection is replaced by a resampled one.
func (f *FastSLAM) UpdateEstimate(u mat.Vector, z []filter.TaggedMeasurement, dt float64) error {
	if u != nil {
		if err := f.predict(u, dt); err != nil {
			return err
		}
	}

	if len(z) == 0 {
		return nil
	}

	w := make([]float64, len(f.particles))
	for i := range w {
		w[i] = 1.0
	}

	for i, p := range f.particles {
		for _, m := range z {
			ft, ok := p.features[m.ID]
			if !ok {
				ft, err := f.initFeature(p.pose, m.Z)
				if err != nil {
					return err
				}
				p.features[m.ID] = ft
				continue
			}

			lik, err := f.correctFeature(p.pose, ft, m.Z)
			if err != nil {
				return err
			}
			w[i] *= lik
		}
	}

	return f.resample(w)
}

// GaussianEstimate summarizes the particle poses into their empirical mean and covariance.
func (f *FastSLAM) GaussianEstimate() (filter.Estimate, error) {
	poses := make([]mat.Vector, len(f.particles))
	for i, p := range f.particles {
		poses[i] = p.pose
	}

	return estimate.FromParticles(poses)
}

// Particles returns a copy of the filter particles together with their maps.
func (f *FastSLAM) Particles() []*Particle {
	particles := make([]*Particle, len(f.particles))
	for i, p := range f.particles {
		particles[i] = p.clone()
	}

	return particles
}

// predict samples a new pose for every particle. If the motion model is a
// filter.MotionSampler the noise is folded in by the model itself, otherwise
// independent zero mean process noise is added to each pose.
func (f *FastSLAM) predict(u mat.Vector, dt float64) error {
	sampler, ok := f.motion.(filter.MotionSampler)

	for _, p := range f.particles {
		var xNext mat.Vector
		var err error

		if ok {
			xNext, err = sampler.Sample(p.pose, u, dt)
		} else {
			xNext, err = f.motion.Predict(p.pose, u, dt)
		}
		if err != nil {
			return fmt.Errorf("particle pose propagation failed: %v", err)
		}

		pose := matrix.VecCopy(xNext)
		if !ok {
			pose.AddVec(pose, f.rNoise.Sample())
		}
		p.pose = pose
	}

	return nil
}

// initFeature creates a landmark estimate from its first sighting: the mean
// comes from the inverse observation and the covariance from the measurement
// noise pushed through the inverted feature jacobian.
func (f *FastSLAM) initFeature(pose *mat.VecDense, z mat.Vector) (*Feature, error) {
	mean, err := f.sensor.InitFeature(pose, z)
	if err != nil {
		return nil, fmt.Errorf("feature initialization failed: %v", err)
	}

	h, err := f.sensor.FeatureJacobian(pose, mean)
	if err != nil {
		return nil, fmt.Errorf("failed to linearize measurement model: %v", err)
	}

	hInv := &mat.Dense{}
	if err := hInv.Inverse(h); err != nil {
		return nil, fmt.Errorf("feature jacobian is not invertible: %v", err)
	}

	// H^-1 * Q * H^-T
	cov := &mat.Dense{}
	cov.Mul(hInv, f.q)
	cov.Mul(cov, hInv.T())

	return &Feature{
		mean:      matrix.VecCopy(mean),
		cov:       matrix.ToSym(cov),
		logWeight: 0.0,
	}, nil
}

// correctFeature runs one EKF correction on the landmark estimate and
// returns the measurement likelihood of the sighting.
func (f *FastSLAM) correctFeature(pose *mat.VecDense, ft *Feature, z mat.Vector) (float64, error) {
	zPred, err := f.sensor.Predict(pose, ft.mean)
	if err != nil {
		return 0, fmt.Errorf("feature measurement prediction failed: %v", err)
	}

	h, err := f.sensor.FeatureJacobian(pose, ft.mean)
	if err != nil {
		return 0, fmt.Errorf("failed to linearize measurement model: %v", err)
	}

	// innovation covariance: H*Cov*H' + Q
	hct := &mat.Dense{}
	hct.Mul(ft.cov, h.T())
	sInn := &mat.Dense{}
	sInn.Mul(h, hct)
	sInn.Add(sInn, f.q)

	sInv := &mat.Dense{}
	if err := sInv.Inverse(sInn); err != nil {
		return 0, fmt.Errorf("singular innovation covariance: %v", err)
	}

	// Kalman gain: Cov*H'*S^-1
	gain := &mat.Dense{}
	gain.Mul(hct, sInv)

	inn := &mat.VecDense{}
	inn.SubVec(z, zPred)

	corr := &mat.VecDense{}
	corr.MulVec(gain, inn)
	ft.mean.AddVec(ft.mean, corr)

	// Cov = (I - K*H) * Cov
	kh := &mat.Dense{}
	kh.Mul(gain, h)
	a := &mat.Dense{}
	a.Sub(matrix.Eye(ft.mean.Len()), kh)
	cov := &mat.Dense{}
	cov.Mul(a, ft.cov)
	ft.cov = matrix.ToSym(cov)

	lik := f.qNoise.Prob(inn)
	ft.logWeight += math.Log(lik)

	return lik, nil
}

// resample replaces the whole particle collection with a new one drawn
// proportionally to the importance weights w. Selected particles are deep
// copied: poses and feature maps are never shared.
func (f *FastSLAM) resample(w []float64) error {
	indices, err := f.scheme.Indices(w, f.src)
	if err != nil {
		return fmt.Errorf("failed to resample filter particles: %v", err)
	}

	particles := make([]*Particle, len(indices))
	for i, idx := range indices {
		particles[i] = f.particles[idx].clone()
	}
	f.particles = particles

	return nil
}
