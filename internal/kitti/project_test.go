package kitti

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/kitti.replay/internal/testutil"
)

func TestCameraProjection(t *testing.T) {
	mfs, w := memDataset()
	testutil.WriteCalibration(w, "/data")

	p, err := Open("/data", WithFileSystem(mfs))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	proj, err := NewCameraProjection(p.Config(), 2)
	if err != nil {
		t.Fatalf("NewCameraProjection failed: %v", err)
	}
	if r, c := proj.Matrix().Dims(); r != 3 || c != 4 {
		t.Errorf("Matrix dims = %dx%d, want 3x4", r, c)
	}
	if w, h := proj.Size(); w != 1242 || h != 375 {
		t.Errorf("Size() = %dx%d, want 1242x375", w, h)
	}

	scan, err := decodeVelodyne(testutil.VelodyneBytes([][4]float32{
		{10, 0, 0, 1},  // straight ahead
		{-10, 0, 0, 1}, // behind the camera
		{10, 1, -1, 1}, // left and below
	}))
	if err != nil {
		t.Fatalf("decodeVelodyne failed: %v", err)
	}
	defer scan.Release()

	pixels := proj.Project(scan)
	if len(pixels) != 2 {
		t.Fatalf("Project returned %d pixels, want 2", len(pixels))
	}

	// Camera z is lidar x, so the forward point lands on the principal point.
	fwd := pixels[0]
	if fwd.Index != 0 {
		t.Errorf("first pixel index = %d, want 0", fwd.Index)
	}
	if math.Abs(fwd.Depth-10) > 1e-9 || math.Abs(fwd.U-609.5593) > 1e-6 || math.Abs(fwd.V-172.854) > 1e-6 {
		t.Errorf("forward point = (%v, %v) depth %v, want (609.5593, 172.854) depth 10", fwd.U, fwd.V, fwd.Depth)
	}

	side := pixels[1]
	if side.Index != 2 {
		t.Errorf("second pixel index = %d, want 2", side.Index)
	}
	if side.U >= fwd.U || side.V <= fwd.V {
		t.Errorf("left-and-below point at (%v, %v), want left of and below (%v, %v)", side.U, side.V, fwd.U, fwd.V)
	}

	if got := len(proj.Visible(scan)); got != 2 {
		t.Errorf("Visible kept %d, want 2", got)
	}
	if got := len(InImage(pixels, 1242, 375)); got != 2 {
		t.Errorf("InImage(1242x375) kept %d, want 2", got)
	}
	if got := len(InImage(pixels, 100, 100)); got != 0 {
		t.Errorf("InImage(100x100) kept %d, want 0", got)
	}
}

func TestCameraProjection_RejectsNonRigidCalibration(t *testing.T) {
	mfs, w := memDataset()
	testutil.WriteCalibration(w, "/data")
	w("/data/calib_velo_to_cam.txt", []byte("R: 2 0 0 0 2 0 0 0 2\nT: 0 0 0\n"))

	p, err := Open("/data", WithFileSystem(mfs))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := NewCameraProjection(p.Config(), 2); !errors.Is(err, ErrNotRigid) {
		t.Errorf("NewCameraProjection error = %v, want ErrNotRigid", err)
	}
}

func TestCameraProjection_NeedsCalibration(t *testing.T) {
	if _, err := NewCameraProjection(&Config{}, 2); err == nil {
		t.Error("expected error without calibration")
	}
}
