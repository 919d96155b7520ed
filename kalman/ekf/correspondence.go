package ekf

import (
	"fmt"

	filter "github.com/milosgajdos/go-localize"
	"github.com/milosgajdos/go-localize/matrix"
	"gonum.org/v1/gonum/mat"
)

// KnownCorrespondence is Extended Kalman Filter localization with known
// measurement correspondences: each measurement carries the identity of its
// source landmark, so no data association is done. Corrections are folded in
// sequentially, one per landmark present in both the measurement batch and
// the landmark table.
type KnownCorrespondence struct {
	// EKF runs the predictions and per landmark corrections
	*EKF
	// landmarks maps landmark identifiers to their known positions.
	// The table is fixed at construction.
	landmarks map[int]*mat.VecDense
}

// NewKnownCorrespondence creates new KnownCorrespondence EKF and returns it.
// landmarks maps landmark identifiers to their known positions; the table is
// copied and never modified by the filter. It returns error if the model or
// noise dimensions are inconsistent.
func NewKnownCorrespondence(motion filter.MotionModel, sensor filter.MeasurementModel, landmarks map[int]mat.Vector, ic filter.InitCond, r, q mat.Symmetric) (*KnownCorrespondence, error) {
	k, err := New(motion, sensor, ic, r, q)
	if err != nil {
		return nil, err
	}

	lm := make(map[int]*mat.VecDense, len(landmarks))
	for id, pos := range landmarks {
		if pos == nil {
			return nil, fmt.Errorf("invalid landmark position: %d", id)
		}
		lm[id] = matrix.VecCopy(pos)
	}

	return &KnownCorrespondence{
		EKF:       k,
		landmarks: lm,
	}, nil
}

// UpdateEstimate advances the belief by one step. A nil u skips the motion
// prediction; a nil or empty z skips the correction. Measurements tagged with
// an identifier missing from the landmark table are silently skipped. If any
// step fails the error is returned and the prior belief is left intact.
func (k *KnownCorrespondence) UpdateEstimate(u mat.Vector, z []filter.TaggedMeasurement, dt float64) error {
	x := matrix.VecCopy(k.x)
	p := &mat.Dense{}
	p.CloneFrom(k.p)

	if u != nil {
		if err := k.predict(x, p, u, dt); err != nil {
			return err
		}
	}

	for _, m := range z {
		landmark, ok := k.landmarks[m.ID]
		if !ok {
			continue
		}
		if err := k.correct(x, p, m.Z, landmark); err != nil {
			return err
		}
	}

	k.x = x
	k.p = matrix.ToSym(p)

	return nil
}
