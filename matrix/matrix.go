package matrix

import "gonum.org/v1/gonum/mat"

// Eye returns n x n identity matrix.
// It panics if n is negative.
func Eye(n int) *mat.DiagDense {
	eye := mat.NewDiagDense(n, nil)
	for i := 0; i < n; i++ {
		eye.SetDiag(i, 1.0)
	}

	return eye
}

// ToSym turns a square matrix m into a symmetric matrix by averaging m with
// its transpose. It is used to clean up floating point drift in covariance
// updates. It panics if m is not square.
func ToSym(m mat.Matrix) *mat.SymDense {
	r, c := m.Dims()
	if r != c {
		panic("matrix: non-square matrix")
	}

	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}

	return s
}

// VecCopy returns a deep copy of vector v.
// It panics if v is nil.
func VecCopy(v mat.Vector) *mat.VecDense {
	c := mat.NewVecDense(v.Len(), nil)
	c.CopyVec(v)

	return c
}

// SymCopy returns a deep copy of symmetric matrix s.
// It panics if s is nil.
func SymCopy(s mat.Symmetric) *mat.SymDense {
	c := mat.NewSymDense(s.SymmetricDim(), nil)
	c.CopySym(s)

	return c
}
