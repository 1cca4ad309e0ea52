package testutil

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/kitti.replay/internal/fsutil"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	// Verify nil error doesn't cause issues
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	t.Parallel()

	AssertError(t, errors.New("boom"))
}

func TestTimestamp(t *testing.T) {
	got := Timestamp(1317042725825)
	want := "2011-09-26 13:12:05.825000000"
	if got != want {
		t.Errorf("Timestamp() = %q, want %q", got, want)
	}
}

func TestTimestampsFile(t *testing.T) {
	got := string(TimestampsFile([]int64{0, 1500}))
	want := "1970-01-01 00:00:00.000000000\n1970-01-01 00:00:01.500000000\n"
	if got != want {
		t.Errorf("TimestampsFile() = %q, want %q", got, want)
	}
}

func TestSampleName(t *testing.T) {
	if got := SampleName(7, ".bin"); got != "0000000007.bin" {
		t.Errorf("SampleName() = %q", got)
	}
}

func TestPNG(t *testing.T) {
	for _, colored := range []bool{false, true} {
		img, err := png.Decode(bytes.NewReader(PNG(4, 3, colored, 20)))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
			t.Errorf("bounds = %v, want 4x3", b)
		}
	}
}

func TestVelodyneBytes(t *testing.T) {
	data := VelodyneBytes([][4]float32{{1, 2, 3, 4}, {5, 6, 7, 8}})
	if len(data) != 32 {
		t.Errorf("len = %d, want 32", len(data))
	}
}

func TestOXTSLine(t *testing.T) {
	if n := len(strings.Fields(OXTSLine(3))); n != 30 {
		t.Errorf("OXTSLine has %d fields, want 30", n)
	}
}

func TestWriters(t *testing.T) {
	dir := t.TempDir()
	seq := filepath.Join(dir, "2011_09_26_drive_0001_sync")
	w := OSWriter(t)

	WriteStereo(w, seq, false, []int64{100, 200})
	WriteLidar(w, seq, []int64{150})
	WriteOXTS(w, seq, []int64{120})
	WriteCalibration(w, dir)

	for _, p := range []string{
		"image_00/timestamps.txt",
		"image_01/data/0000000001.png",
		"velodyne_points/data/0000000000.bin",
		"oxts/data/0000000000.txt",
	} {
		if _, err := os.Stat(filepath.Join(seq, p)); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "calib_velo_to_cam.txt")); err != nil {
		t.Errorf("expected calibration file: %v", err)
	}

	mfs := fsutil.NewMemoryFileSystem()
	WriteStereo(MemWriter(mfs), "/data/seq", true, []int64{1})
	if !mfs.IsDir("/data/seq/image_03/data") {
		t.Errorf("memory fixture missing color right camera:\n%s", mfs)
	}
}
