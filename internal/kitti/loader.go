package kitti

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/banshee-data/kitti.replay/internal/fsutil"
	"github.com/banshee-data/kitti.replay/internal/monitoring"
	"github.com/banshee-data/kitti.replay/internal/timeutil"
)

// Sub-directory names inside a sequence folder.
const (
	DirGrayLeft   = "image_00"
	DirGrayRight  = "image_01"
	DirColorLeft  = "image_02"
	DirColorRight = "image_03"
	DirLidar      = "velodyne_points"
	DirGPSIMU     = "oxts"

	// TimestampsFile holds one timestamp line per sample of a modality.
	TimestampsFile = "timestamps.txt"
	dataDir        = "data"
)

// Dirs returns the sub-directories a kind is read from; stereo kinds list
// left then right.
func (k Kind) Dirs() []string {
	switch k {
	case KindStereoGray:
		return []string{DirGrayLeft, DirGrayRight}
	case KindStereoColor:
		return []string{DirColorLeft, DirColorRight}
	case KindLidar:
		return []string{DirLidar}
	case KindGPSIMU:
		return []string{DirGPSIMU}
	}
	return nil
}

// QueueSource builds the ordered per-modality queue of one sequence folder.
type QueueSource interface {
	Build(sequence string, kind Kind) ([]*Message, error)
}

// Loader reads sample files from a dataset through a FileSystem. It never
// sorts: queues come out in file-listing order, which the recording tools
// guarantee is capture order.
type Loader struct {
	fs fsutil.FileSystem
}

// NewLoader creates a Loader; a nil fs means the OS filesystem.
func NewLoader(fs fsutil.FileSystem) *Loader {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Loader{fs: fs}
}

// Build reads every sample of kind in the sequence folder. A folder that
// lacks the modality's directories yields an empty queue and no error. On
// any error no messages are returned.
func (l *Loader) Build(sequence string, kind Kind) ([]*Message, error) {
	dirs := kind.Dirs()
	if dirs == nil {
		return nil, fmt.Errorf("unknown kind %v", kind)
	}
	for _, d := range dirs {
		if !l.fs.IsDir(filepath.Join(sequence, d)) {
			monitoring.Debugf("kitti: %s has no %s, %s queue empty", sequence, d, kind)
			return nil, nil
		}
	}

	switch kind {
	case KindStereoGray, KindStereoColor:
		return l.buildStereo(sequence, dirs[0], dirs[1], kind == KindStereoColor)
	case KindLidar:
		return l.buildLidar(sequence)
	default:
		return l.buildGPSIMU(sequence)
	}
}

// readTimestamps parses <sequence>/<dir>/timestamps.txt.
func (l *Loader) readTimestamps(dir string) ([]int64, error) {
	f, err := l.fs.Open(filepath.Join(dir, TimestampsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open timestamps: %w", err)
	}
	defer f.Close()

	ts, err := timeutil.ReadTimestamps(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(dir, TimestampsFile), err)
	}
	return ts, nil
}

// listSamples returns the sample file names of a modality directory in
// name order. Samples live under data/ when it exists, otherwise directly
// in the modality directory next to the timestamps files.
func (l *Loader) listSamples(dir string) (string, []string, error) {
	sampleDir := filepath.Join(dir, dataDir)
	if !l.fs.IsDir(sampleDir) {
		sampleDir = dir
	}

	entries, err := l.fs.ReadDir(sampleDir)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list samples: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "timestamps") {
			continue
		}
		names = append(names, name)
	}
	return sampleDir, names, nil
}

// samples pairs a modality's files with its timestamps.
func (l *Loader) samples(dir string) (string, []string, []int64, error) {
	ts, err := l.readTimestamps(dir)
	if err != nil {
		return "", nil, nil, err
	}
	sampleDir, names, err := l.listSamples(dir)
	if err != nil {
		return "", nil, nil, err
	}
	if len(names) != len(ts) {
		return "", nil, nil, fmt.Errorf("%w: %s has %d files and %d timestamps",
			ErrCountMismatch, dir, len(names), len(ts))
	}
	return sampleDir, names, ts, nil
}

func (l *Loader) buildStereo(sequence, leftName, rightName string, color bool) ([]*Message, error) {
	leftDir := filepath.Join(sequence, leftName)
	rightDir := filepath.Join(sequence, rightName)

	leftSamples, leftFiles, ts, err := l.samples(leftDir)
	if err != nil {
		return nil, err
	}
	rightSamples, rightFiles, err := l.listSamples(rightDir)
	if err != nil {
		return nil, err
	}
	if len(leftFiles) != len(rightFiles) {
		return nil, fmt.Errorf("%w: %d left and %d right images", ErrStereoMismatch, len(leftFiles), len(rightFiles))
	}

	seqName := filepath.Base(sequence)
	out := make([]*Message, 0, len(leftFiles))
	for i, name := range leftFiles {
		if baseName(name) != baseName(rightFiles[i]) {
			return nil, fmt.Errorf("%w: left %s paired with right %s", ErrStereoMismatch, name, rightFiles[i])
		}
		left, err := l.decodeImage(filepath.Join(leftSamples, name))
		if err != nil {
			return nil, err
		}
		right, err := l.decodeImage(filepath.Join(rightSamples, rightFiles[i]))
		if err != nil {
			return nil, err
		}
		if left.Bounds() != right.Bounds() {
			return nil, fmt.Errorf("%w: %s is %v left and %v right", ErrStereoMismatch, name, left.Bounds(), right.Bounds())
		}
		if reflect.TypeOf(left) != reflect.TypeOf(right) {
			return nil, fmt.Errorf("%w: %s is %T left and %T right", ErrStereoMismatch, name, left, right)
		}

		out = append(out, NewStereoMessage(&StereoFrame{
			Left:      left,
			Right:     right,
			Color:     color,
			Timestamp: ts[i],
			Source:    Source{Sequence: seqName, Index: i, File: name},
		}))
	}
	return out, nil
}

func (l *Loader) decodeImage(path string) (image.Image, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, path, err)
	}
	return img, nil
}

func (l *Loader) buildLidar(sequence string) ([]*Message, error) {
	dir := filepath.Join(sequence, DirLidar)
	sampleDir, files, ts, err := l.samples(dir)
	if err != nil {
		return nil, err
	}

	seqName := filepath.Base(sequence)
	out := make([]*Message, 0, len(files))
	for i, name := range files {
		scan, err := l.readScan(filepath.Join(sampleDir, name))
		if err != nil {
			releaseAll(out)
			return nil, err
		}
		scan.Timestamp = ts[i]
		scan.Source = Source{Sequence: seqName, Index: i, File: name}
		out = append(out, NewLidarMessage(scan))
	}
	return out, nil
}

// readScan decodes one sweep, memory mapping the file when the filesystem
// allows it.
func (l *Loader) readScan(path string) (*LidarScan, error) {
	if m, ok := l.fs.(fsutil.Mapper); ok {
		data, release, err := m.Map(path)
		if err != nil {
			return nil, fmt.Errorf("failed to map scan: %w", err)
		}
		scan, decodeErr := decodeVelodyne(data)
		if err := release(); err != nil {
			monitoring.Logf("kitti: failed to release mapping of %s: %v", path, err)
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("%s: %w", path, decodeErr)
		}
		return scan, nil
	}

	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan: %w", err)
	}
	scan, err := decodeVelodyne(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scan, nil
}

func (l *Loader) buildGPSIMU(sequence string) ([]*Message, error) {
	dir := filepath.Join(sequence, DirGPSIMU)
	sampleDir, files, ts, err := l.samples(dir)
	if err != nil {
		return nil, err
	}

	seqName := filepath.Base(sequence)
	out := make([]*Message, 0, len(files))
	for i, name := range files {
		data, err := l.fs.ReadFile(filepath.Join(sampleDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read oxts record: %w", err)
		}
		sample, err := parseOXTS(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		sample.Timestamp = ts[i]
		sample.Source = Source{Sequence: seqName, Index: i, File: name}
		out = append(out, NewGPSIMUMessage(sample))
	}
	return out, nil
}

func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func releaseAll(msgs []*Message) {
	for _, m := range msgs {
		m.Release()
	}
}
