// Package transform builds homogeneous 4x4 coordinate transforms over the
// (depth, height, width) axes and samples random warps from them.
//
// Matrices are stored in single precision, which is the working precision of
// the resampler. Inversion widens to float64 before factorizing.
package transform

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a homogeneous transform in row-major order. Row and column 3 are
// the homogeneous axis; a non-zero M[3][0:3] block makes the map projective.
type Matrix [4][4]float32

// Vec is a homogeneous coordinate (z, y, x, w)
type Vec [4]float32

// Identity returns the 4x4 identity
func Identity() Matrix {
	return Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Translate shifts coordinates by (dz, dy, dx)
func Translate(dz, dy, dx float64) Matrix {
	return Matrix{
		{1, 0, 0, float32(dz)},
		{0, 1, 0, float32(dy)},
		{0, 0, 1, float32(dx)},
		{0, 0, 0, 1},
	}
}

// RotateZ rotates about the depth axis, mixing height and width
func RotateZ(a float64) Matrix {
	c, s := float32(math.Cos(a)), float32(math.Sin(a))
	return Matrix{
		{1, 0, 0, 0},
		{0, c, -s, 0},
		{0, s, c, 0},
		{0, 0, 0, 1},
	}
}

// RotateY rotates in the depth/height plane
func RotateY(a float64) Matrix {
	c, s := float32(math.Cos(a)), float32(math.Sin(a))
	return Matrix{
		{c, -s, 0, 0},
		{s, c, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// RotateX rotates in the depth/width plane
func RotateX(a float64) Matrix {
	c, s := float32(math.Cos(a)), float32(math.Sin(a))
	return Matrix{
		{c, 0, s, 0},
		{0, 1, 0, 0},
		{-s, 0, c, 0},
		{0, 0, 0, 1},
	}
}

// Scale scales each spatial axis independently
func Scale(sz, sy, sx float64) Matrix {
	return Matrix{
		{float32(sz), 0, 0, 0},
		{0, float32(sy), 0, 0},
		{0, 0, float32(sx), 0},
		{0, 0, 0, 1},
	}
}

// ScaleInverse is Scale(1/sz, 1/sy, 1/sx)
func ScaleInverse(sz, sy, sx float64) Matrix {
	return Scale(1/sz, 1/sy, 1/sx)
}

// Mul returns m·o. Products are accumulated in float64.
func (m Matrix) Mul(o Matrix) Matrix {
	var r Matrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += float64(m[i][k]) * float64(o[k][j])
			}
			r[i][j] = float32(sum)
		}
	}
	return r
}

// Chain composes ms into one matrix by post-multiplying an identity
// accumulator, so ms[0] is the last transform applied to a vector.
func Chain(ms ...Matrix) Matrix {
	acc := Identity()
	for _, m := range ms {
		acc = acc.Mul(m)
	}
	return acc
}

// Apply returns m·v without a homogeneous divide
func (m Matrix) Apply(v Vec) Vec {
	var r Vec
	for i := 0; i < 4; i++ {
		r[i] = m[i][0]*v[0] + m[i][1]*v[1] + m[i][2]*v[2] + m[i][3]*v[3]
	}
	return r
}

// HasPerspective reports whether any bottom-row spatial coefficient is non-zero
func (m Matrix) HasPerspective() bool {
	return m[3][0] != 0 || m[3][1] != 0 || m[3][2] != 0
}

// Dense widens m into a float64 gonum matrix
func (m Matrix) Dense() *mat.Dense {
	d := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			d.Set(i, j, float64(m[i][j]))
		}
	}
	return d
}

// FromDense narrows a 4x4 gonum matrix to working precision
func FromDense(d mat.Matrix) Matrix {
	var m Matrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m[i][j] = float32(d.At(i, j))
		}
	}
	return m
}

// ErrSingular is returned by Inverse when m has no usable inverse
var ErrSingular = errors.New("transform matrix is singular")

// Inverse inverts m in double precision. Ill-conditioned matrices are
// rejected together with exactly singular ones.
func (m Matrix) Inverse() (Matrix, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.Dense()); err != nil {
		return Matrix{}, errors.Wrapf(ErrSingular, "invert %v: %v", m, err)
	}
	return FromDense(&inv), nil
}

// Equal reports whether m and o agree within tol on every element
func (m Matrix) Equal(o Matrix, tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(float64(m[i][j])-float64(o[i][j])) > tol {
				return false
			}
		}
	}
	return true
}

func (m Matrix) String() string {
	return fmt.Sprintf("[%v %v %v %v]", m[0], m[1], m[2], m[3])
}
