package rand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestWithCovN(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25})

	samples, err := WithCovN(cov, 10, rand.NewSource(1))
	assert.NotNil(samples)
	assert.NoError(err)

	r, c := samples.Dims()
	assert.Equal(2, r)
	assert.Equal(10, c)

	// same seed generates the same samples
	samples2, err := WithCovN(cov, 10, rand.NewSource(1))
	assert.NoError(err)
	assert.True(mat.Equal(samples, samples2))

	// non-positive sample counts
	samples, err = WithCovN(cov, 0, nil)
	assert.Nil(samples)
	assert.Error(err)

	samples, err = WithCovN(cov, -10, nil)
	assert.Nil(samples)
	assert.Error(err)
}

func TestWithCovNSingular(t *testing.T) {
	assert := assert.New(t)

	// zero covariance is positive semi-definite: sampling must still work
	// and return zero samples
	samples, err := WithCovN(mat.NewSymDense(2, nil), 5, rand.NewSource(1))
	assert.NotNil(samples)
	assert.NoError(err)
	assert.True(mat.Equal(mat.NewDense(2, 5, nil), samples))
}
