package kitti

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/kitti.replay/internal/fsutil"
	"github.com/banshee-data/kitti.replay/internal/monitoring"
	"github.com/banshee-data/kitti.replay/internal/testutil"
	"github.com/banshee-data/kitti.replay/internal/timeutil"
)

func TestMain(m *testing.M) {
	// Fixtures write UTC wall-clock timestamps.
	timeutil.Location = time.UTC
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// memDataset returns an empty in-memory dataset rooted at /data.
func memDataset() (*fsutil.MemoryFileSystem, testutil.FileWriter) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.MkdirAll("/data")
	return mfs, testutil.MemWriter(mfs)
}

func newFakeMessage(k Kind, ts int64) *Message {
	switch k {
	case KindStereoGray:
		return NewStereoMessage(&StereoFrame{Timestamp: ts})
	case KindStereoColor:
		return NewStereoMessage(&StereoFrame{Timestamp: ts, Color: true})
	case KindLidar:
		return NewLidarMessage(&LidarScan{Timestamp: ts})
	default:
		return NewGPSIMUMessage(&GPSIMUSample{Timestamp: ts})
	}
}

// fakeSource serves prepared timestamp queues and records every Build call.
type fakeSource struct {
	queues map[string]map[Kind][]int64
	errs   map[string]map[Kind]error
	calls  []string
	built  []*Message
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		queues: make(map[string]map[Kind][]int64),
		errs:   make(map[string]map[Kind]error),
	}
}

func (f *fakeSource) add(seq string, k Kind, stamps ...int64) {
	if f.queues[seq] == nil {
		f.queues[seq] = make(map[Kind][]int64)
	}
	f.queues[seq][k] = append(f.queues[seq][k], stamps...)
}

func (f *fakeSource) fail(seq string, k Kind, err error) {
	if f.errs[seq] == nil {
		f.errs[seq] = make(map[Kind]error)
	}
	f.errs[seq][k] = err
}

// Build looks queues up by folder name, so the same source serves a Merger
// given bare names and a Parser given full paths.
func (f *fakeSource) Build(path string, k Kind) ([]*Message, error) {
	seq := filepath.Base(path)
	f.calls = append(f.calls, fmt.Sprintf("%s/%s", seq, k))
	if err := f.errs[seq][k]; err != nil {
		return nil, err
	}
	var out []*Message
	for _, ts := range f.queues[seq][k] {
		msg := newFakeMessage(k, ts)
		f.built = append(f.built, msg)
		out = append(out, msg)
	}
	return out, nil
}

// drain pulls every message out of m and releases it.
func drain(m *Merger) []*Message {
	var out []*Message
	for {
		msg, ok := m.FetchNext()
		if !ok {
			return out
		}
		msg.Release()
		out = append(out, msg)
	}
}

func blankImage() image.Image {
	return image.NewGray(image.Rect(0, 0, 1, 1))
}
