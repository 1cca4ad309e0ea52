package kitti

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/kitti.replay/internal/fsutil"
	"github.com/banshee-data/kitti.replay/internal/kitti/calib"
	"github.com/banshee-data/kitti.replay/internal/monitoring"
	"github.com/banshee-data/kitti.replay/internal/timeutil"
)

// SequenceFilter decides whether a sequence folder (full path) is replayed.
type SequenceFilter func(path string) bool

type options struct {
	fs     fsutil.FileSystem
	filter SequenceFilter
	kinds  []Kind
	clock  timeutil.Clock
	source QueueSource
}

// Option configures Open.
type Option func(*options)

// WithFileSystem reads the dataset through fs instead of the OS.
func WithFileSystem(fs fsutil.FileSystem) Option {
	return func(o *options) { o.fs = fs }
}

// WithFilter skips sequence folders for which f returns false.
func WithFilter(f SequenceFilter) Option {
	return func(o *options) { o.filter = f }
}

// WithKinds restricts loading to the given kinds. Kinds whose sensor is
// absent from the dataset stay disabled.
func WithKinds(kinds ...Kind) Option {
	return func(o *options) { o.kinds = kinds }
}

// WithClock sets the clock used to time runs.
func WithClock(c timeutil.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithQueueSource replaces the filesystem Loader.
func WithQueueSource(s QueueSource) Option {
	return func(o *options) { o.source = s }
}

// Open scans a dataset root: it loads whichever calibration files exist,
// lists the sequence folders in name order, applies the filter and records
// which sensors the kept folders contain. Nothing is loaded from the
// sequences until a run starts.
func Open(root string, opts ...Option) (*Parser, error) {
	o := options{
		fs:    fsutil.OSFileSystem{},
		clock: timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if root == "" || !o.fs.IsDir(root) {
		return nil, fmt.Errorf("%w: %q", ErrDatasetNotFound, root)
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}

	cfg := Config{Root: root}
	if err := loadCalibration(o.fs, &cfg); err != nil {
		return nil, err
	}

	sequences, err := discoverSequences(o.fs, &cfg, o.filter)
	if err != nil {
		return nil, err
	}

	kinds := cfg.Kinds()
	if o.kinds != nil {
		kinds = intersectKinds(kinds, o.kinds)
	}

	source := o.source
	if source == nil {
		source = NewLoader(o.fs)
	}

	return &Parser{
		cfg:       cfg,
		sequences: sequences,
		kinds:     kinds,
		source:    source,
		clock:     o.clock,
	}, nil
}

func loadCalibration(fs fsutil.FileSystem, cfg *Config) error {
	files := []struct {
		name  string
		table *calib.Table
		has   *bool
	}{
		{calib.CamToCamFile, &cfg.CalibCamToCam, &cfg.HasCalibCamToCam},
		{calib.IMUToVeloFile, &cfg.CalibIMUToVelo, &cfg.HasCalibIMUToVelo},
		{calib.VeloToCamFile, &cfg.CalibVeloToCam, &cfg.HasCalibVeloToCam},
	}
	for _, f := range files {
		path := filepath.Join(cfg.Root, f.name)
		if !fs.Exists(path) {
			continue
		}
		r, err := fs.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.name, err)
		}
		table, err := calib.Parse(r)
		r.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.table = table
		*f.has = true
	}
	return nil
}

// discoverSequences lists the sub-directories of the root in name order and
// marks the sensors present in those kept by filter.
func discoverSequences(fs fsutil.FileSystem, cfg *Config, filter SequenceFilter) ([]string, error) {
	entries, err := fs.ReadDir(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to list dataset: %w", err)
	}

	var sequences []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(cfg.Root, e.Name())
		if filter != nil && !filter(path) {
			monitoring.Logf("Skipping filtered data set: %s", e.Name())
			continue
		}

		for _, k := range AllKinds {
			present := true
			for _, d := range k.Dirs() {
				if !fs.IsDir(filepath.Join(path, d)) {
					present = false
					break
				}
			}
			if present {
				cfg.setPresent(k)
			}
		}
		sequences = append(sequences, path)
	}
	return sequences, nil
}

func (c *Config) setPresent(k Kind) {
	switch k {
	case KindStereoGray:
		c.HasStereoGray = true
	case KindStereoColor:
		c.HasStereoColor = true
	case KindLidar:
		c.HasLidar = true
	case KindGPSIMU:
		c.HasGPSIMU = true
	}
}

func intersectKinds(present, wanted []Kind) []Kind {
	var out []Kind
	for _, k := range present {
		for _, w := range wanted {
			if k == w {
				out = append(out, k)
				break
			}
		}
	}
	return out
}
