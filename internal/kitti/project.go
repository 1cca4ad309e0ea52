package kitti

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/kitti.replay/internal/kitti/calib"
)

// Pixel is a lidar return projected onto a camera image plane.
type Pixel struct {
	U, V  float64 // image coordinates
	Depth float64 // distance along the camera's optical axis, metres
	Index int     // index of the source point in the scan
}

// CameraProjection maps lidar-frame points onto the rectified image of one
// camera: P_rect_0i · R_rect_00 · Tr_velo_to_cam.
type CameraProjection struct {
	m      *mat.Dense // 3x4
	width  int
	height int
}

// rigidTolerance bounds how far a calibration rotation's determinant may
// drift from 1.
const rigidTolerance = 1e-3

// NewCameraProjection builds the projection for camera cam (0-3) from the
// dataset calibration. The image size comes from S_rect_0<cam>.
func NewCameraProjection(cfg *Config, cam int) (*CameraProjection, error) {
	veloToCam, err := cfg.VeloToCam()
	if err != nil {
		return nil, err
	}
	if !calib.IsRigid(veloToCam, rigidTolerance) {
		return nil, fmt.Errorf("%w: %s", ErrNotRigid, calib.VeloToCamFile)
	}
	rect, err := cfg.CalibCamToCam.RectifyingRotation(0)
	if err != nil {
		return nil, err
	}
	p, err := cfg.CamProjection(cam)
	if err != nil {
		return nil, err
	}
	w, h, err := cfg.CalibCamToCam.ImageSize(cam)
	if err != nil {
		return nil, err
	}
	return &CameraProjection{
		m:      calib.Compose(p, calib.Compose(rect, veloToCam)),
		width:  w,
		height: h,
	}, nil
}

// Size returns the rectified image size in pixels.
func (c *CameraProjection) Size() (width, height int) {
	return c.width, c.height
}

// Matrix returns the combined 3x4 matrix.
func (c *CameraProjection) Matrix() mat.Matrix {
	return c.m
}

// Project returns the pixels of every point in front of the camera. Points
// at or behind the image plane are dropped.
func (c *CameraProjection) Project(scan *LidarScan) []Pixel {
	m := c.m
	out := make([]Pixel, 0, scan.Len()/4)
	for i := 0; i < scan.Len(); i++ {
		x, y, z := float64(scan.X[i]), float64(scan.Y[i]), float64(scan.Z[i])
		u := m.At(0, 0)*x + m.At(0, 1)*y + m.At(0, 2)*z + m.At(0, 3)
		v := m.At(1, 0)*x + m.At(1, 1)*y + m.At(1, 2)*z + m.At(1, 3)
		w := m.At(2, 0)*x + m.At(2, 1)*y + m.At(2, 2)*z + m.At(2, 3)
		if w <= 0 {
			continue
		}
		out = append(out, Pixel{U: u / w, V: v / w, Depth: w, Index: i})
	}
	return out
}

// InImage filters pixels to those inside a width x height image.
func InImage(pixels []Pixel, width, height int) []Pixel {
	out := pixels[:0:0]
	for _, p := range pixels {
		if p.U >= 0 && p.V >= 0 && p.U < float64(width) && p.V < float64(height) {
			out = append(out, p)
		}
	}
	return out
}

// Visible returns the points of scan that land inside the camera image.
func (c *CameraProjection) Visible(scan *LidarScan) []Pixel {
	return InImage(c.Project(scan), c.width, c.height)
}
