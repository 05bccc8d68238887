// Package mat3 provides fixed-size 3-vector and 3x3 matrix arithmetic for the
// velocity filter. All operations are allocation-free value math; matrices are
// stored row-major.
package mat3

import "math"

// Vec3 is a 3-element column vector.
type Vec3 [3]float64

// Mat3 is a 3x3 matrix in row-major order.
type Mat3 [9]float64

// Identity returns the 3x3 identity matrix.
func Identity() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Diag returns a diagonal matrix with the given diagonal entries.
func Diag(d Vec3) Mat3 {
	return Mat3{
		d[0], 0, 0,
		0, d[1], 0,
		0, 0, d[2],
	}
}

// Add returns a + b.
func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Sub returns a - b.
func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// Scale returns s * a.
func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{s * a[0], s * a[1], s * a[2]}
}

// Dot returns the dot product of a and b.
func (a Vec3) Dot(b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Norm returns the Euclidean length of a.
func (a Vec3) Norm() float64 {
	return math.Sqrt(a.Dot(a))
}

// Cross returns the cross product a x b.
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Add returns a + b.
func (a Mat3) Add(b Mat3) Mat3 {
	var out Mat3
	for i := range out {
		out[i] = a[i] + b[i]
	}
	return out
}

// Scale returns s * a.
func (a Mat3) Scale(s float64) Mat3 {
	var out Mat3
	for i := range out {
		out[i] = s * a[i]
	}
	return out
}

// Mul returns the matrix product a * b.
func (a Mat3) Mul(b Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum := 0.0
			for k := 0; k < 3; k++ {
				sum += a[i*3+k] * b[k*3+j]
			}
			out[i*3+j] = sum
		}
	}
	return out
}

// MulVec returns the matrix-vector product a * v.
func (a Mat3) MulVec(v Vec3) Vec3 {
	var out Vec3
	for i := 0; i < 3; i++ {
		out[i] = a[i*3]*v[0] + a[i*3+1]*v[1] + a[i*3+2]*v[2]
	}
	return out
}

// Transpose returns the transpose of a.
func (a Mat3) Transpose() Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[j*3+i] = a[i*3+j]
		}
	}
	return out
}

// Trace returns the sum of the diagonal entries.
func (a Mat3) Trace() float64 {
	return a[0] + a[4] + a[8]
}

// Det returns the determinant of a.
func (a Mat3) Det() float64 {
	return a[0]*(a[4]*a[8]-a[5]*a[7]) -
		a[1]*(a[3]*a[8]-a[5]*a[6]) +
		a[2]*(a[3]*a[7]-a[4]*a[6])
}

// Inverse returns the closed-form cofactor inverse of a. The boolean is false
// when the determinant is numerically zero; the returned matrix is then not
// usable.
func (a Mat3) Inverse() (Mat3, bool) {
	det := a.Det()
	if math.Abs(det) < 1e-12 {
		return Mat3{}, false
	}
	inv := 1.0 / det
	return Mat3{
		(a[4]*a[8] - a[5]*a[7]) * inv,
		(a[2]*a[7] - a[1]*a[8]) * inv,
		(a[1]*a[5] - a[2]*a[4]) * inv,
		(a[5]*a[6] - a[3]*a[8]) * inv,
		(a[0]*a[8] - a[2]*a[6]) * inv,
		(a[2]*a[3] - a[0]*a[5]) * inv,
		(a[3]*a[7] - a[4]*a[6]) * inv,
		(a[1]*a[6] - a[0]*a[7]) * inv,
		(a[0]*a[4] - a[1]*a[3]) * inv,
	}, true
}

// Skew returns the skew-symmetric matrix of w, such that Skew(w).MulVec(v)
// equals w x v.
func Skew(w Vec3) Mat3 {
	return Mat3{
		0, -w[2], w[1],
		w[2], 0, -w[0],
		-w[1], w[0], 0,
	}
}

// Outer returns the outer product a * b^T.
func Outer(a, b Vec3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*3+j] = a[i] * b[j]
		}
	}
	return out
}
