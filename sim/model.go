package sim

import (
	"fmt"
	"math"

	"github.com/milosgajdos/go-localize/noise"
	"gonum.org/v1/gonum/mat"
)

// Odometry is a planar unicycle motion model.
// Its state is the robot pose (x, y, heading) and its control input is
// (linear velocity, angular velocity).
type Odometry struct {
	// Noise is process noise folded in by Sample; it may be nil in which
	// case Sample behaves like Predict.
	Noise *noise.Gaussian
}

// Predict propagates pose x under control u over time dt
func (o *Odometry) Predict(x, u mat.Vector, dt float64) (mat.Vector, error) {
	if x.Len() != 3 || u.Len() != 2 {
		return nil, fmt.Errorf("invalid state or control dimensions: %d, %d", x.Len(), u.Len())
	}

	v, omega := u.AtVec(0), u.AtVec(1)
	theta := x.AtVec(2)

	next := mat.NewVecDense(3, []float64{
		x.AtVec(0) + v*math.Cos(theta)*dt,
		x.AtVec(1) + v*math.Sin(theta)*dt,
		NormalizeAngle(theta + omega*dt),
	})

	return next, nil
}

// StateJacobian returns the jacobian of Predict with respect to the pose
func (o *Odometry) StateJacobian(x, u mat.Vector, dt float64) (mat.Matrix, error) {
	if x.Len() != 3 || u.Len() != 2 {
		return nil, fmt.Errorf("invalid state or control dimensions: %d, %d", x.Len(), u.Len())
	}

	v := u.AtVec(0)
	theta := x.AtVec(2)

	return mat.NewDense(3, 3, []float64{
		1, 0, -v * math.Sin(theta) * dt,
		0, 1, v * math.Cos(theta) * dt,
		0, 0, 1,
	}), nil
}

// Sample draws a noisy next pose given pose x and control u
func (o *Odometry) Sample(x, u mat.Vector, dt float64) (mat.Vector, error) {
	next, err := o.Predict(x, u, dt)
	if err != nil {
		return nil, err
	}

	if o.Noise == nil {
		return next, nil
	}

	noisy := &mat.VecDense{}
	noisy.AddVec(next, o.Noise.Sample())
	noisy.SetVec(2, NormalizeAngle(noisy.AtVec(2)))

	return noisy, nil
}

// Dims returns state and control input dimensions of the model
func (o *Odometry) Dims() (nx, nu int) {
	return 3, 2
}

// RangeBearing is a range and bearing measurement model: it observes the
// distance and relative heading from the robot pose (x, y, heading) to a
// 2D landmark. It implements filter.FeatureModel.
type RangeBearing struct{}

// Predict returns the expected (range, bearing) observation of landmark from pose x.
// It returns error if landmark is nil or if the landmark coincides with the pose.
func (rb *RangeBearing) Predict(x, landmark mat.Vector) (mat.Vector, error) {
	if landmark == nil {
		return nil, fmt.Errorf("no landmark supplied")
	}

	if x.Len() != 3 || landmark.Len() != 2 {
		return nil, fmt.Errorf("invalid state or landmark dimensions: %d, %d", x.Len(), landmark.Len())
	}

	dx := landmark.AtVec(0) - x.AtVec(0)
	dy := landmark.AtVec(1) - x.AtVec(1)
	r := math.Hypot(dx, dy)
	if r == 0 {
		return nil, fmt.Errorf("landmark coincides with the robot pose")
	}

	return mat.NewVecDense(2, []float64{
		r,
		NormalizeAngle(math.Atan2(dy, dx) - x.AtVec(2)),
	}), nil
}

// Jacobian returns the jacobian of Predict with respect to the pose
func (rb *RangeBearing) Jacobian(x, landmark mat.Vector) (mat.Matrix, error) {
	if landmark == nil {
		return nil, fmt.Errorf("no landmark supplied")
	}

	if x.Len() != 3 || landmark.Len() != 2 {
		return nil, fmt.Errorf("invalid state or landmark dimensions: %d, %d", x.Len(), landmark.Len())
	}

	dx := landmark.AtVec(0) - x.AtVec(0)
	dy := landmark.AtVec(1) - x.AtVec(1)
	r2 := dx*dx + dy*dy
	if r2 == 0 {
		return nil, fmt.Errorf("landmark coincides with the robot pose")
	}
	r := math.Sqrt(r2)

	return mat.NewDense(2, 3, []float64{
		-dx / r, -dy / r, 0,
		dy / r2, -dx / r2, -1,
	}), nil
}

// FeatureJacobian returns the jacobian of Predict with respect to the landmark
func (rb *RangeBearing) FeatureJacobian(x, landmark mat.Vector) (mat.Matrix, error) {
	if landmark == nil {
		return nil, fmt.Errorf("no landmark supplied")
	}

	if x.Len() != 3 || landmark.Len() != 2 {
		return nil, fmt.Errorf("invalid state or landmark dimensions: %d, %d", x.Len(), landmark.Len())
	}

	dx := landmark.AtVec(0) - x.AtVec(0)
	dy := landmark.AtVec(1) - x.AtVec(1)
	r2 := dx*dx + dy*dy
	if r2 == 0 {
		return nil, fmt.Errorf("landmark coincides with the robot pose")
	}
	r := math.Sqrt(r2)

	return mat.NewDense(2, 2, []float64{
		dx / r, dy / r,
		-dy / r2, dx / r2,
	}), nil
}

// InitFeature returns the landmark position implied by observing (range, bearing)
// measurement z from pose x. It is the inverse of Predict.
func (rb *RangeBearing) InitFeature(x, z mat.Vector) (mat.Vector, error) {
	if x.Len() != 3 || z.Len() != 2 {
		return nil, fmt.Errorf("invalid state or measurement dimensions: %d, %d", x.Len(), z.Len())
	}

	r, bearing := z.AtVec(0), z.AtVec(1)
	heading := x.AtVec(2) + bearing

	return mat.NewVecDense(2, []float64{
		x.AtVec(0) + r*math.Cos(heading),
		x.AtVec(1) + r*math.Sin(heading),
	}), nil
}

// Dims returns state and observation dimensions of the model
func (rb *RangeBearing) Dims() (nx, nz int) {
	return 3, 2
}

// LinearMotion is a discrete time linear motion model: x' = A*x + B*u.
// dt is ignored: A and B describe one discrete step.
type LinearMotion struct {
	// A is state transition matrix
	A *mat.Dense
	// B is control matrix
	B *mat.Dense
}

// Predict propagates state x under control u
func (l *LinearMotion) Predict(x, u mat.Vector, dt float64) (mat.Vector, error) {
	nx, nu := l.Dims()
	if x.Len() != nx || u.Len() != nu {
		return nil, fmt.Errorf("invalid state or control dimensions: %d, %d", x.Len(), u.Len())
	}

	out := &mat.VecDense{}
	out.MulVec(l.A, x)

	ctl := &mat.VecDense{}
	ctl.MulVec(l.B, u)
	out.AddVec(out, ctl)

	return out, nil
}

// StateJacobian returns the state transition matrix A
func (l *LinearMotion) StateJacobian(x, u mat.Vector, dt float64) (mat.Matrix, error) {
	j := &mat.Dense{}
	j.CloneFrom(l.A)

	return j, nil
}

// Dims returns state and control input dimensions of the model
func (l *LinearMotion) Dims() (nx, nu int) {
	_, nx = l.A.Dims()
	_, nu = l.B.Dims()

	return nx, nu
}

// LinearSensor is a linear measurement model: z = C*x. The landmark
// argument is ignored.
type LinearSensor struct {
	// C is observation matrix
	C *mat.Dense
}

// Predict returns the expected observation from state x
func (l *LinearSensor) Predict(x, landmark mat.Vector) (mat.Vector, error) {
	nx, _ := l.Dims()
	if x.Len() != nx {
		return nil, fmt.Errorf("invalid state dimension: %d", x.Len())
	}

	out := &mat.VecDense{}
	out.MulVec(l.C, x)

	return out, nil
}

// Jacobian returns the observation matrix C
func (l *LinearSensor) Jacobian(x, landmark mat.Vector) (mat.Matrix, error) {
	j := &mat.Dense{}
	j.CloneFrom(l.C)

	return j, nil
}

// Dims returns state and observation dimensions of the model
func (l *LinearSensor) Dims() (nx, nz int) {
	nz, nx = l.C.Dims()

	return nx, nz
}

// NormalizeAngle wraps angle a into (-pi, pi].
func NormalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}

	return a
}
