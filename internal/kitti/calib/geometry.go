package calib

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// RigidTransform builds the 4x4 homogeneous transform from the table's
// row-major "R" (3x3) and "T" (3x1) groups, as stored in the imu-to-velo and
// velo-to-cam files.
func (t Table) RigidTransform() (*mat.Dense, error) {
	r, err := t.Group("R", 9)
	if err != nil {
		return nil, err
	}
	tr, err := t.Group("T", 3)
	if err != nil {
		return nil, err
	}

	m := mat.NewDense(4, 4, []float64{
		r[0], r[1], r[2], tr[0],
		r[3], r[4], r[5], tr[1],
		r[6], r[7], r[8], tr[2],
		0, 0, 0, 1,
	})
	return m, nil
}

// RectifyingRotation returns R_rect_0<cam> padded to a 4x4 homogeneous matrix.
func (t Table) RectifyingRotation(cam int) (*mat.Dense, error) {
	r, err := t.Group(fmt.Sprintf("R_rect_%02d", cam), 9)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(4, 4, []float64{
		r[0], r[1], r[2], 0,
		r[3], r[4], r[5], 0,
		r[6], r[7], r[8], 0,
		0, 0, 0, 1,
	}), nil
}

// Projection returns the 3x4 rectified projection matrix P_rect_0<cam>.
func (t Table) Projection(cam int) (*mat.Dense, error) {
	p, err := t.Group(fmt.Sprintf("P_rect_%02d", cam), 12)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(3, 4, append([]float64(nil), p...)), nil
}

// ImageSize returns the rectified image size S_rect_0<cam> as width, height.
func (t Table) ImageSize(cam int) (width, height int, err error) {
	s, err := t.Group(fmt.Sprintf("S_rect_%02d", cam), 2)
	if err != nil {
		return 0, 0, err
	}
	return int(s[0]), int(s[1]), nil
}

// Compose returns a*b for chaining transforms (a applied after b).
func Compose(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(a, b)
	return &out
}

// Apply transforms the point (x, y, z) by a 4x4 homogeneous matrix.
func Apply(m mat.Matrix, x, y, z float64) (float64, float64, float64) {
	return m.At(0, 0)*x + m.At(0, 1)*y + m.At(0, 2)*z + m.At(0, 3),
		m.At(1, 0)*x + m.At(1, 1)*y + m.At(1, 2)*z + m.At(1, 3),
		m.At(2, 0)*x + m.At(2, 1)*y + m.At(2, 2)*z + m.At(2, 3)
}

// IsRigid reports whether the 3x3 upper-left block of m is a proper rotation
// (determinant within tol of 1) and the bottom row is [0 0 0 1].
func IsRigid(m mat.Matrix, tol float64) bool {
	rows, cols := m.Dims()
	if rows != 4 || cols != 4 {
		return false
	}
	rot := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot.Set(i, j, m.At(i, j))
		}
	}
	if d := mat.Det(rot); d < 1-tol || d > 1+tol {
		return false
	}
	return m.At(3, 0) == 0 && m.At(3, 1) == 0 && m.At(3, 2) == 0 && m.At(3, 3) == 1
}
