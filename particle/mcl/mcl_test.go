package mcl

import (
	"math"
	"os"
	"testing"

	"github.com/milosgajdos/go-localize/resample"
	"github.com/milosgajdos/go-localize/sim"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

var (
	motion *sim.LinearMotion
	sensor *sim.LinearSensor
	ic     *sim.InitCond
	r      *mat.SymDense
	q      *mat.SymDense
	n      int
)

func setup() {
	motion = &sim.LinearMotion{
		A: mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		B: mat.NewDense(2, 1, nil),
	}
	sensor = &sim.LinearSensor{
		C: mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
	}

	ic = sim.NewInitCond(mat.NewVecDense(2, nil), mat.NewSymDense(2, []float64{1, 0, 0, 1}))

	r = mat.NewSymDense(2, []float64{1, 0, 0, 1})
	q = mat.NewSymDense(2, []float64{0.5, 0, 0, 0.5})

	n = 500
}

func TestMain(m *testing.M) {
	setup()
	os.Exit(m.Run())
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	f, err := New(motion, sensor, ic, r, q, n, resample.Systematic, rand.NewSource(1))
	assert.NotNil(f)
	assert.NoError(err)
	assert.Len(f.Particles(), n)

	// invalid particle count
	f, err = New(motion, sensor, ic, r, q, -10, resample.Systematic, nil)
	assert.Nil(f)
	assert.Error(err)

	// nil and mis-sized noise covariances
	f, err = New(motion, sensor, ic, nil, q, n, resample.Systematic, nil)
	assert.Nil(f)
	assert.Error(err)

	f, err = New(motion, sensor, ic, r, mat.NewSymDense(3, nil), n, resample.Systematic, nil)
	assert.Nil(f)
	assert.Error(err)

	// measurement noise must be positive definite
	f, err = New(motion, sensor, ic, r, mat.NewSymDense(2, nil), n, resample.Systematic, nil)
	assert.Nil(f)
	assert.Error(err)
}

func TestUpdateEstimateNoControlNoMeasurements(t *testing.T) {
	assert := assert.New(t)

	f, err := New(motion, sensor, ic, r, q, 50, resample.Systematic, rand.NewSource(3))
	assert.NoError(err)

	before := f.Particles()
	assert.NoError(f.UpdateEstimate(nil, nil, 0.1))
	after := f.Particles()

	// no prediction and no correction: every particle stays bit for bit identical
	assert.Len(after, len(before))
	for i := range before {
		assert.True(mat.Equal(before[i], after[i]))
	}

	// an empty batch behaves the same as a nil batch
	assert.NoError(f.UpdateEstimate(nil, []mat.Vector{}, 0.1))
	after = f.Particles()
	for i := range before {
		assert.True(mat.Equal(before[i], after[i]))
	}
}

func TestUpdateEstimatePrediction(t *testing.T) {
	assert := assert.New(t)

	f, err := New(motion, sensor, ic, r, q, 50, resample.Systematic, rand.NewSource(3))
	assert.NoError(err)

	before := f.Particles()
	u := mat.NewVecDense(1, nil)
	assert.NoError(f.UpdateEstimate(u, nil, 0.1))
	after := f.Particles()

	// identity dynamics with zero control: particles only move by process noise
	assert.Len(after, len(before))

	var moved bool
	for i := range before {
		if !mat.Equal(before[i], after[i]) {
			moved = true
			break
		}
	}
	assert.True(moved)
}

func TestUpdateEstimateCorrection(t *testing.T) {
	assert := assert.New(t)

	f, err := New(motion, sensor, ic, r, q, n, resample.Systematic, rand.NewSource(5))
	assert.NoError(err)

	target := mat.NewVecDense(2, []float64{3.0, 3.0})

	dist := func() float64 {
		est, err := f.GaussianEstimate()
		assert.NoError(err)
		return math.Hypot(
			est.Val().AtVec(0)-target.AtVec(0),
			est.Val().AtVec(1)-target.AtVec(1),
		)
	}

	before := dist()
	assert.NoError(f.UpdateEstimate(nil, []mat.Vector{target}, 0.1))
	after := dist()

	// weighting and resampling concentrate the cloud around the measurement
	assert.Less(after, before)
	assert.Len(f.Particles(), n)
}

func TestGaussianEstimate(t *testing.T) {
	assert := assert.New(t)

	f, err := New(motion, sensor, ic, r, q, n, resample.Stratified, rand.NewSource(7))
	assert.NoError(err)

	est, err := f.GaussianEstimate()
	assert.NoError(err)
	assert.Equal(2, est.Val().Len())
	assert.Equal(2, est.Cov().SymmetricDim())

	// the cloud was drawn around the initial state with covariance r:
	// with n particles the empirical moments land nearby
	assert.InDelta(0.0, est.Val().AtVec(0), 0.2)
	assert.InDelta(0.0, est.Val().AtVec(1), 0.2)
	assert.InDelta(1.0, est.Cov().At(0, 0), 0.3)
	assert.InDelta(1.0, est.Cov().At(1, 1), 0.3)
}

func TestRoughen(t *testing.T) {
	assert := assert.New(t)

	f, err := New(motion, sensor, ic, r, q, 100, resample.IID, rand.NewSource(11))
	assert.NoError(err)

	before := f.Particles()
	assert.NoError(f.Roughen(0.0))
	after := f.Particles()

	assert.Len(after, len(before))

	var moved bool
	for i := range before {
		if !mat.Equal(before[i], after[i]) {
			moved = true
			break
		}
	}
	assert.True(moved)
}
