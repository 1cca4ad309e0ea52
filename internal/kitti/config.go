package kitti

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/kitti.replay/internal/kitti/calib"
)

// Config describes the opened dataset: which sensors were found and the
// calibration tables loaded from the root. It is filled in once by Open and
// is read-only afterwards; handlers receive a pointer to the same value.
type Config struct {
	// Root is the dataset path, always ending in a separator.
	Root string

	HasStereoGray  bool
	HasStereoColor bool
	HasLidar       bool
	HasGPSIMU      bool

	HasCalibCamToCam  bool
	HasCalibIMUToVelo bool
	HasCalibVeloToCam bool

	CalibCamToCam  calib.Table
	CalibIMUToVelo calib.Table
	CalibVeloToCam calib.Table
}

// Has reports whether the sensor producing kind was found in any sequence.
func (c *Config) Has(k Kind) bool {
	switch k {
	case KindStereoGray:
		return c.HasStereoGray
	case KindStereoColor:
		return c.HasStereoColor
	case KindLidar:
		return c.HasLidar
	case KindGPSIMU:
		return c.HasGPSIMU
	}
	return false
}

// Kinds returns the present kinds in merge priority order.
func (c *Config) Kinds() []Kind {
	var out []Kind
	for _, k := range AllKinds {
		if c.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Summary renders the sensor and calibration status block printed at
// startup.
func (c *Config) Summary() string {
	var b strings.Builder
	fmt.Fprintln(&b, "Current Sensor Status:")
	fmt.Fprintf(&b, "\tGray Stereo: %t\n", c.HasStereoGray)
	fmt.Fprintf(&b, "\tColor Stereo: %t\n", c.HasStereoColor)
	fmt.Fprintf(&b, "\tLidar Data: %t\n", c.HasLidar)
	fmt.Fprintf(&b, "\tGPS/IMU Messages: %t\n", c.HasGPSIMU)
	fmt.Fprintln(&b, "Current Config Status:")
	fmt.Fprintf(&b, "\tCam to Cam: %t\n", c.HasCalibCamToCam)
	fmt.Fprintf(&b, "\tGPS/IMU to Velo: %t\n", c.HasCalibIMUToVelo)
	fmt.Fprintf(&b, "\tVelo to Cam: %t\n", c.HasCalibVeloToCam)
	return b.String()
}

// VeloToCam returns the lidar-to-reference-camera rigid transform.
func (c *Config) VeloToCam() (*mat.Dense, error) {
	if !c.HasCalibVeloToCam {
		return nil, fmt.Errorf("%w: no %s", calib.ErrMissingGroup, calib.VeloToCamFile)
	}
	return c.CalibVeloToCam.RigidTransform()
}

// IMUToVelo returns the gps/imu-to-lidar rigid transform.
func (c *Config) IMUToVelo() (*mat.Dense, error) {
	if !c.HasCalibIMUToVelo {
		return nil, fmt.Errorf("%w: no %s", calib.ErrMissingGroup, calib.IMUToVeloFile)
	}
	return c.CalibIMUToVelo.RigidTransform()
}

// CamProjection returns the rectified 3x4 projection matrix of camera cam
// (0-3).
func (c *Config) CamProjection(cam int) (*mat.Dense, error) {
	if !c.HasCalibCamToCam {
		return nil, fmt.Errorf("%w: no %s", calib.ErrMissingGroup, calib.CamToCamFile)
	}
	return c.CalibCamToCam.Projection(cam)
}
