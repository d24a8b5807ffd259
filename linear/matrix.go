// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package linear

import (
	"math"
)

// M3 is a column-major 3x3 matrix of float32.
type M3 [3]V3

// I makes m an identity matrix.
func (m *M3) I() { *m = M3{{1}, {0, 1}, {0, 0, 1}} }

// Transpose sets m to contain the transpose of n.
func (m *M3) Transpose(n *M3) {
	var t M3
	for i := range t {
		for j := range t {
			t[i][j] = n[j][i]
		}
	}
	*m = t
}

// Invert sets m to contain the inverse of n.
func (m *M3) Invert(n *M3) {
	s0 := n[1][1]*n[2][2] - n[1][2]*n[2][1]
	s1 := n[1][0]*n[2][2] - n[1][2]*n[2][0]
	s2 := n[1][0]*n[2][1] - n[1][1]*n[2][0]
	idet := 1 / (n[0][0]*s0 - n[0][1]*s1 + n[0][2]*s2)
	*m = M3{
		{
			s0 * idet,
			-(n[0][1]*n[2][2] - n[0][2]*n[2][1]) * idet,
			(n[0][1]*n[1][2] - n[0][2]*n[1][1]) * idet,
		},
		{
			-s1 * idet,
			(n[0][0]*n[2][2] - n[0][2]*n[2][0]) * idet,
			-(n[0][0]*n[1][2] - n[0][2]*n[1][0]) * idet,
		},
		{
			s2 * idet,
			-(n[0][0]*n[2][1] - n[0][1]*n[2][0]) * idet,
			(n[0][0]*n[1][1] - n[0][1]*n[1][0]) * idet,
		},
	}
}

// FromM4 sets m to contain the upper-left 3x3 of n.
func (m *M3) FromM4(n *M4) {
	for i := range m {
		m[i] = V3{n[i][0], n[i][1], n[i][2]}
	}
}

// M4 is a column-major 4x4 matrix of float32.
type M4 [4]V4

// I makes m an identity matrix.
func (m *M4) I() { *m = M4{{1}, {0, 1}, {0, 0, 1}, {0, 0, 0, 1}} }

// Mul sets m to contain l ⋅ r.
func (m *M4) Mul(l, r *M4) {
	var p M4
	for i := range p {
		for j := range p {
			for k := range p {
				p[i][j] += l[k][j] * r[i][k]
			}
		}
	}
	*m = p
}

// Translate sets m to contain a translation by v.
func (m *M4) Translate(v *V3) {
	m.I()
	m[3] = V4{v[0], v[1], v[2], 1}
}

// Scale sets m to contain a scale by v.
func (m *M4) Scale(v *V3) { *m = M4{{v[0]}, {0, v[1]}, {0, 0, v[2]}, {0, 0, 0, 1}} }

// Rotate sets m to contain the rotation described by
// the unit quaternion q.
func (m *M4) Rotate(q *Q) {
	x, y, z, w := q.V[0], q.V[1], q.V[2], q.R
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z
	*m = M4{
		{1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0},
		{2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx), 0},
		{2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy), 0},
		{0, 0, 0, 1},
	}
}

// Invert sets m to contain the inverse of n.
func (m *M4) Invert(n *M4) {
	s0 := n[0][0]*n[1][1] - n[0][1]*n[1][0]
	s1 := n[0][0]*n[1][2] - n[0][2]*n[1][0]
	s2 := n[0][0]*n[1][3] - n[0][3]*n[1][0]
	s3 := n[0][1]*n[1][2] - n[0][2]*n[1][1]
	s4 := n[0][1]*n[1][3] - n[0][3]*n[1][1]
	s5 := n[0][2]*n[1][3] - n[0][3]*n[1][2]
	c0 := n[2][0]*n[3][1] - n[2][1]*n[3][0]
	c1 := n[2][0]*n[3][2] - n[2][2]*n[3][0]
	c2 := n[2][0]*n[3][3] - n[2][3]*n[3][0]
	c3 := n[2][1]*n[3][2] - n[2][2]*n[3][1]
	c4 := n[2][1]*n[3][3] - n[2][3]*n[3][1]
	c5 := n[2][2]*n[3][3] - n[2][3]*n[3][2]
	idet := 1 / (s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0)
	*m = M4{
		{
			(c5*n[1][1] - c4*n[1][2] + c3*n[1][3]) * idet,
			(-c5*n[0][1] + c4*n[0][2] - c3*n[0][3]) * idet,
			(s5*n[3][1] - s4*n[3][2] + s3*n[3][3]) * idet,
			(-s5*n[2][1] + s4*n[2][2] - s3*n[2][3]) * idet,
		},
		{
			(-c5*n[1][0] + c2*n[1][2] - c1*n[1][3]) * idet,
			(c5*n[0][0] - c2*n[0][2] + c1*n[0][3]) * idet,
			(-s5*n[3][0] + s2*n[3][2] - s1*n[3][3]) * idet,
			(s5*n[2][0] - s2*n[2][2] + s1*n[2][3]) * idet,
		},
		{
			(c4*n[1][0] - c2*n[1][1] + c0*n[1][3]) * idet,
			(-c4*n[0][0] + c2*n[0][1] - c0*n[0][3]) * idet,
			(s4*n[3][0] - s2*n[3][1] + s0*n[3][3]) * idet,
			(-s4*n[2][0] + s2*n[2][1] - s0*n[2][3]) * idet,
		},
		{
			(-c3*n[1][0] + c1*n[1][1] - c0*n[1][2]) * idet,
			(c3*n[0][0] - c1*n[0][1] + c0*n[0][2]) * idet,
			(-s3*n[3][0] + s1*n[3][1] - s0*n[3][2]) * idet,
			(s3*n[2][0] - s1*n[2][1] + s0*n[2][2]) * idet,
		},
	}
}

// LookAt sets m to contain a right-handed view matrix.
func (m *M4) LookAt(center, eye, up *V3) {
	var f, s, u V3
	f.Sub(center, eye)
	f.Norm(&f)
	s.Cross(&f, up)
	s.Norm(&s)
	u.Cross(&s, &f)
	*m = M4{
		{s[0], u[0], -f[0], 0},
		{s[1], u[1], -f[1], 0},
		{s[2], u[2], -f[2], 0},
		{-s.Dot(eye), -u.Dot(eye), f.Dot(eye), 1},
	}
}

// Perspective sets m to contain a perspective projection
// with depth in the range [0, 1].
// yfov is given in radians.
func (m *M4) Perspective(yfov, aspect, znear, zfar float32) {
	ct := 1 / float32(math.Tan(float64(yfov)*0.5))
	*m = M4{
		{ct / aspect},
		{0, ct},
		{0, 0, zfar / (znear - zfar), -1},
		{0, 0, znear * zfar / (znear - zfar)},
	}
}

// Ortho sets m to contain an orthographic projection
// with depth in the range [0, 1].
func (m *M4) Ortho(xmag, ymag, znear, zfar float32) {
	*m = M4{
		{1 / xmag},
		{0, 1 / ymag},
		{0, 0, 1 / (znear - zfar)},
		{0, 0, znear / (znear - zfar), 1},
	}
}
