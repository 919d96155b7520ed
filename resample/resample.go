package resample

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Scheme selects the algorithm used to redraw particles proportionally to
// their importance weights. It is fixed at filter construction.
type Scheme int

const (
	// IID draws N independent uniforms and resamples through the sorted
	// multinomial sweep. It has the highest resampling variance.
	IID Scheme = iota
	// Stratified draws one uniform per equal width stratum.
	// It is unbiased and has lower variance than IID.
	Stratified
	// Systematic draws a single uniform offset shared by all equally spaced
	// strata. It has the lowest resampling variance.
	Systematic
)

// String implements the Stringer interface.
func (s Scheme) String() string {
	switch s {
	case IID:
		return "iid"
	case Stratified:
		return "stratified"
	case Systematic:
		return "systematic"
	}

	return "unknown"
}

// Indices redraws len(w) source indices with replacement, proportionally to
// the importance weights w, using the selected scheme. src is the source of
// randomness; if src is nil the global source is used.
// It returns error if w is empty, contains a negative or NaN weight, if the
// total weight is not positive or if the scheme is unknown.
func (s Scheme) Indices(w []float64, src rand.Source) ([]int, error) {
	switch s {
	case IID:
		return sortedMultinomial(w, src)
	case Stratified:
		return stratified(w, src)
	case Systematic:
		return systematic(w, src)
	}

	return nil, fmt.Errorf("unknown resampling scheme: %d", int(s))
}

// Multinomial redraws len(w) source indices with replacement, proportionally
// to the importance weights w, each draw independent of the others.
// Each draw runs a binary search over the cumulative weights a.k.a. the
// Roulette Wheel Draw. src may be nil in which case the global source is used.
// It returns error if w is empty, contains a negative or NaN weight or if the
// total weight is not positive.
func Multinomial(w []float64, src rand.Source) ([]int, error) {
	if _, err := validate(w); err != nil {
		return nil, err
	}

	// discrete CDF; sorted in ascending order by construction
	cdf := make([]float64, len(w))
	floats.CumSum(cdf, w)

	// multiply each unit draw with the largest CDF value:
	// easier than normalizing the weights to [0,1)
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}

	indices := make([]int, len(w))
	for i := range indices {
		val := uniform.Rand() * cdf[len(cdf)-1]
		// Search returns the smallest index j such that cdf[j] > val
		j := sort.Search(len(cdf), func(j int) bool { return cdf[j] > val })
		if j == len(cdf) {
			j = len(cdf) - 1
		}
		indices[i] = j
	}

	return indices, nil
}

// sortedMultinomial draws the same independent uniforms as Multinomial,
// pre-sorts them and selects indices through the shared cumulative sweep.
func sortedMultinomial(w []float64, src rand.Source) ([]int, error) {
	total, err := validate(w)
	if err != nil {
		return nil, err
	}

	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}

	draws := make([]float64, len(w))
	for i := range draws {
		draws[i] = uniform.Rand() * total
	}
	sort.Float64s(draws)

	return sweep(draws, w, total), nil
}

// stratified splits [0, total) into len(w) equal width strata and draws one
// independent uniform within each stratum.
func stratified(w []float64, src rand.Source) ([]int, error) {
	total, err := validate(w)
	if err != nil {
		return nil, err
	}

	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}

	n := float64(len(w))
	draws := make([]float64, len(w))
	for i := range draws {
		draws[i] = (float64(i) + uniform.Rand()) / n * total
	}

	return sweep(draws, w, total), nil
}

// systematic draws a single uniform offset and spaces the remaining draws
// equally across [0, total).
func systematic(w []float64, src rand.Source) ([]int, error) {
	total, err := validate(w)
	if err != nil {
		return nil, err
	}

	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}
	offset := uniform.Rand()

	n := float64(len(w))
	draws := make([]float64, len(w))
	for i := range draws {
		draws[i] = (float64(i) + offset) / n * total
	}

	return sweep(draws, w, total), nil
}

// sweep selects one source index per draw by walking a cumulative weight
// pointer along the ascending draws. Floating point drift may leave the
// accumulated weight short of the final draws once the pointer reaches the
// last index: the accumulated weight is then clamped to the known total
// instead of reading past the weight slice.
func sweep(draws, w []float64, total float64) []int {
	indices := make([]int, len(draws))

	idx := 0
	cum := w[0]
	for i, draw := range draws {
		for cum < draw {
			if idx == len(w)-1 {
				cum = total
				break
			}
			idx++
			cum += w[idx]
		}
		indices[i] = idx
	}

	return indices
}

// validate checks resampling weights and returns their total.
func validate(w []float64) (float64, error) {
	if len(w) == 0 {
		return 0, fmt.Errorf("no weights supplied")
	}

	for i, weight := range w {
		if weight < 0 || math.IsNaN(weight) {
			return 0, fmt.Errorf("invalid weight at index %d: %v", i, weight)
		}
	}

	total := floats.Sum(w)
	if total <= 0 || math.IsInf(total, 0) {
		return 0, fmt.Errorf("invalid total weight: %v", total)
	}

	return total, nil
}
