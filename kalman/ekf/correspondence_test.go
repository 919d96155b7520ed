package ekf

import (
	"testing"

	filter "github.com/milosgajdos/go-localize"
	"github.com/milosgajdos/go-localize/sim"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func kcSetup() (*sim.Odometry, *sim.RangeBearing, map[int]mat.Vector, *sim.InitCond, *mat.SymDense, *mat.SymDense) {
	odom := &sim.Odometry{}
	rb := &sim.RangeBearing{}

	landmarks := map[int]mat.Vector{
		1: mat.NewVecDense(2, []float64{5.0, 0.0}),
		2: mat.NewVecDense(2, []float64{0.0, 5.0}),
	}

	ic := sim.NewInitCond(
		mat.NewVecDense(3, nil),
		mat.NewSymDense(3, []float64{0.5, 0, 0, 0, 0.5, 0, 0, 0, 0.1}),
	)

	r := mat.NewSymDense(3, []float64{0.01, 0, 0, 0, 0.01, 0, 0, 0, 0.001})
	q := mat.NewSymDense(2, []float64{0.01, 0, 0, 0.001})

	return odom, rb, landmarks, ic, r, q
}

func TestNewKnownCorrespondence(t *testing.T) {
	assert := assert.New(t)

	odom, rb, landmarks, ic, r, q := kcSetup()

	f, err := NewKnownCorrespondence(odom, rb, landmarks, ic, r, q)
	assert.NotNil(f)
	assert.NoError(err)

	// invalid noise dimension propagates from the embedded EKF
	f, err = NewKnownCorrespondence(odom, rb, landmarks, ic, mat.NewSymDense(2, nil), q)
	assert.Nil(f)
	assert.Error(err)

	// nil landmark position
	f, err = NewKnownCorrespondence(odom, rb, map[int]mat.Vector{1: nil}, ic, r, q)
	assert.Nil(f)
	assert.Error(err)
}

func TestKnownCorrespondenceCorrection(t *testing.T) {
	assert := assert.New(t)

	odom, rb, landmarks, ic, r, q := kcSetup()

	f, err := NewKnownCorrespondence(odom, rb, landmarks, ic, r, q)
	assert.NoError(err)

	// true robot sits at (1, 0): landmark 1 measures closer than the prior
	// belief at the origin predicts, so the correction moves x forward
	truth := mat.NewVecDense(3, []float64{1.0, 0.0, 0.0})
	z, err := rb.Predict(truth, landmarks[1])
	assert.NoError(err)

	err = f.UpdateEstimate(nil, []filter.TaggedMeasurement{{ID: 1, Z: z}}, 0.1)
	assert.NoError(err)

	est, err := f.GaussianEstimate()
	assert.NoError(err)
	assert.Greater(est.Val().AtVec(0), 0.0)
}

func TestKnownCorrespondenceUnknownTag(t *testing.T) {
	assert := assert.New(t)

	odom, rb, landmarks, ic, r, q := kcSetup()

	truth := mat.NewVecDense(3, []float64{1.0, 0.0, 0.0})
	z, err := rb.Predict(truth, landmarks[1])
	assert.NoError(err)

	// a batch with an unknown landmark identifier produces an estimate
	// identical to omitting that measurement entirely
	tagged, err := NewKnownCorrespondence(odom, rb, landmarks, ic, r, q)
	assert.NoError(err)
	known, err := NewKnownCorrespondence(odom, rb, landmarks, ic, r, q)
	assert.NoError(err)

	err = tagged.UpdateEstimate(nil, []filter.TaggedMeasurement{{ID: 1, Z: z}, {ID: 99, Z: z}}, 0.1)
	assert.NoError(err)
	err = known.UpdateEstimate(nil, []filter.TaggedMeasurement{{ID: 1, Z: z}}, 0.1)
	assert.NoError(err)

	taggedEst, err := tagged.GaussianEstimate()
	assert.NoError(err)
	knownEst, err := known.GaussianEstimate()
	assert.NoError(err)

	assert.True(mat.EqualApprox(knownEst.Val(), taggedEst.Val(), 1e-12))
	assert.True(mat.EqualApprox(knownEst.Cov(), taggedEst.Cov(), 1e-12))

	// only unknown identifiers: the belief stays untouched
	unknown, err := NewKnownCorrespondence(odom, rb, landmarks, ic, r, q)
	assert.NoError(err)

	before, err := unknown.GaussianEstimate()
	assert.NoError(err)

	err = unknown.UpdateEstimate(nil, []filter.TaggedMeasurement{{ID: 99, Z: z}}, 0.1)
	assert.NoError(err)

	after, err := unknown.GaussianEstimate()
	assert.NoError(err)
	assert.True(mat.Equal(before.Val(), after.Val()))
	assert.True(mat.Equal(before.Cov(), after.Cov()))
}

func TestKnownCorrespondencePrediction(t *testing.T) {
	assert := assert.New(t)

	odom, rb, landmarks, ic, r, q := kcSetup()

	f, err := NewKnownCorrespondence(odom, rb, landmarks, ic, r, q)
	assert.NoError(err)

	// drive straight ahead for one second
	ctrl := mat.NewVecDense(2, []float64{1.0, 0.0})
	err = f.UpdateEstimate(ctrl, nil, 1.0)
	assert.NoError(err)

	est, err := f.GaussianEstimate()
	assert.NoError(err)

	assert.InDelta(1.0, est.Val().AtVec(0), 1e-12)
	assert.InDelta(0.0, est.Val().AtVec(1), 1e-12)
}
