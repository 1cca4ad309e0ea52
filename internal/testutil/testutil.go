// Package testutil provides shared test helpers and synthetic dataset
// fixtures.
//
// The fixture writers lay files out the way the recording tools do:
// <sequence>/<modality>/timestamps.txt plus one file per sample under
// <sequence>/<modality>/data/.
package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/kitti.replay/internal/fsutil"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// FileWriter stores fixture files.
type FileWriter func(path string, data []byte)

// OSWriter writes fixture files to disk, creating parent directories.
func OSWriter(t testing.TB) FileWriter {
	return func(path string, data []byte) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
}

// MemWriter writes fixture files into an in-memory filesystem.
func MemWriter(mfs *fsutil.MemoryFileSystem) FileWriter {
	return func(path string, data []byte) {
		mfs.WriteFile(path, data)
	}
}

// Timestamp formats milliseconds since the epoch as a dataset timestamp
// line (UTC wall clock, nanosecond fraction).
func Timestamp(ms int64) string {
	t := time.UnixMilli(ms).UTC()
	return t.Format("2006-01-02 15:04:05") + fmt.Sprintf(".%09d", t.Nanosecond())
}

// TimestampsFile renders one timestamp line per entry.
func TimestampsFile(stamps []int64) []byte {
	var b strings.Builder
	for _, ms := range stamps {
		b.WriteString(Timestamp(ms))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// SampleName is the zero-padded sample file name used by the recorder.
func SampleName(i int, ext string) string {
	return fmt.Sprintf("%010d%s", i, ext)
}

// PNG encodes a small test image. Gray images use 8-bit luminance, color
// images RGBA; shade fills every pixel so frames are distinguishable.
func PNG(width, height int, colored bool, shade uint8) []byte {
	var img image.Image
	if colored {
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				rgba.Set(x, y, color.RGBA{R: shade, G: 255 - shade, B: shade / 2, A: 255})
			}
		}
		img = rgba
	} else {
		gray := image.NewGray(image.Rect(0, 0, width, height))
		for i := range gray.Pix {
			gray.Pix[i] = shade
		}
		img = gray
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(fmt.Sprintf("testutil: png encode: %v", err))
	}
	return buf.Bytes()
}

// VelodyneBytes encodes points as little-endian float32 x, y, z, reflectance.
func VelodyneBytes(points [][4]float32) []byte {
	out := make([]byte, len(points)*16)
	for i, p := range points {
		for j, v := range p {
			binary.LittleEndian.PutUint32(out[i*16+j*4:], math.Float32bits(v))
		}
	}
	return out
}

// OXTSLine renders a 30-field navigation record whose latitude encodes i.
func OXTSLine(i int) string {
	fields := []string{
		fmt.Sprintf("%.9f", 49.0+float64(i)*1e-5), "8.4", "112.5", // lat lon alt
		"0.01", "-0.02", "1.57", // roll pitch yaw
		"3.1", "0.2", "3.0", "0.1", "0.0", // vn ve vf vl vu
		"0.5", "0.1", "9.8", // ax ay az
		"0.4", "0.1", "9.8", // af al au
		"0.001", "0.002", "0.003", // wx wy wz
		"0.001", "0.002", "0.003", // wf wl wu
		"0.2", "0.05", // pos/vel accuracy
		"4", "10", "4", "4", "0", // navstat numsats posmode velmode orimode
	}
	return strings.Join(fields, " ")
}

// WriteStereo writes a left/right camera pair for a sequence.
func WriteStereo(w FileWriter, seqDir string, colored bool, stamps []int64) {
	left, right := "image_00", "image_01"
	if colored {
		left, right = "image_02", "image_03"
	}
	for _, dir := range []string{left, right} {
		w(filepath.Join(seqDir, dir, "timestamps.txt"), TimestampsFile(stamps))
		for i := range stamps {
			w(filepath.Join(seqDir, dir, "data", SampleName(i, ".png")), PNG(4, 3, colored, uint8(i*10)))
		}
	}
}

// WriteLidar writes one small sweep per timestamp.
func WriteLidar(w FileWriter, seqDir string, stamps []int64) {
	w(filepath.Join(seqDir, "velodyne_points", "timestamps.txt"), TimestampsFile(stamps))
	for i := range stamps {
		points := [][4]float32{
			{float32(i) + 10, 1, -1, 0.5},
			{float32(i) + 20, -2, 0.5, 0.25},
			{-5, 3, 0, 0.75},
		}
		w(filepath.Join(seqDir, "velodyne_points", "data", SampleName(i, ".bin")), VelodyneBytes(points))
	}
}

// WriteOXTS writes one navigation record per timestamp.
func WriteOXTS(w FileWriter, seqDir string, stamps []int64) {
	w(filepath.Join(seqDir, "oxts", "timestamps.txt"), TimestampsFile(stamps))
	for i := range stamps {
		w(filepath.Join(seqDir, "oxts", "data", SampleName(i, ".txt")), []byte(OXTSLine(i)+"\n"))
	}
}

// Calibration documents in the recorder's format, trimmed to the groups the
// replay uses.
const (
	CalibCamToCam = `calib_time: 09-Jan-2012 13:57:47
corner_dist: 9.950000e-02
S_rect_02: 1.242000e+03 3.750000e+02
R_rect_00: 1 0 0 0 1 0 0 0 1
P_rect_02: 7.215377e+02 0.000000e+00 6.095593e+02 0.000000e+00 0.000000e+00 7.215377e+02 1.728540e+02 0.000000e+00 0.000000e+00 0.000000e+00 1.000000e+00 0.000000e+00
`
	CalibIMUToVelo = `calib_time: 25-May-2012 16:47:16
R: 9.999976e-01 7.553071e-04 -2.035826e-03 -7.854027e-04 9.998898e-01 -1.482298e-02 2.024406e-03 1.482454e-02 9.998881e-01
T: -8.086759e-01 3.195559e-01 -7.997231e-01
`
	// CalibVeloToCam maps lidar x-forward/y-left/z-up onto camera
	// x-right/y-down/z-forward with no offset.
	CalibVeloToCam = `calib_time: 15-Mar-2012 11:37:16
R: 0 -1 0 0 0 -1 1 0 0
T: 0 0 0
`
)

// WriteCalibration writes all three calibration files to the dataset root.
func WriteCalibration(w FileWriter, root string) {
	w(filepath.Join(root, "calib_cam_to_cam.txt"), []byte(CalibCamToCam))
	w(filepath.Join(root, "calib_imu_to_velo.txt"), []byte(CalibIMUToVelo))
	w(filepath.Join(root, "calib_velo_to_cam.txt"), []byte(CalibVeloToCam))
}
