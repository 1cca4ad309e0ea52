package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/kitti.replay/internal/config"
	"github.com/banshee-data/kitti.replay/internal/kitti"
	"github.com/banshee-data/kitti.replay/internal/monitoring"
	"github.com/banshee-data/kitti.replay/internal/replaydb"
	"github.com/banshee-data/kitti.replay/internal/timeline"
)

type runOptions struct {
	*rootOptions
	Speed    float64
	Database string
	Plot     string
	Kinds    string
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [root]",
		Short: "Replay a dataset",
		Long: `Replay every sequence folder under root in name order, emitting the
messages of each folder in timestamp order.

Examples:
  kitti-replay run /data/kitti/2011_09_26
  kitti-replay run /data/kitti/2011_09_26 --kinds lidar,gpsimu --db runs.db
  kitti-replay run --config replay.yaml --plot timeline.png`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, opts, cfg, args)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = runReplay(ctx, cfg, opts.Kinds, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().Float64Var(&opts.Speed, "speed", 1.0, "playback speed multiplier (recorded only)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "sqlite catalog to record the run in")
	cmd.Flags().StringVar(&opts.Plot, "plot", "", "write a timeline of the run (.png, .svg, .pdf or interactive .html)")
	cmd.Flags().StringVar(&opts.Kinds, "kinds", "", "comma separated kinds to replay (gray,color,lidar,gpsimu)")

	return cmd
}

// applyFlags lays explicitly set flags over the loaded config.
func applyFlags(cmd *cobra.Command, opts *runOptions, cfg *config.ReplayConfig, args []string) {
	if len(args) > 0 {
		cfg.Root = &args[0]
	}
	if cmd.Flags().Changed("speed") {
		cfg.Speed = &opts.Speed
	}
	if cmd.Flags().Changed("db") {
		cfg.CatalogPath = &opts.Database
	}
	if cmd.Flags().Changed("plot") {
		cfg.PlotPath = &opts.Plot
	}
	if opts.Verbose {
		v := true
		cfg.Debug = &v
	}
}

// parseKinds resolves the --kinds flag, falling back to the config's
// enabled sensors.
func parseKinds(flag string, cfg *config.ReplayConfig) ([]kitti.Kind, error) {
	names := cfg.EnabledSensors()
	if flag != "" {
		names = strings.Split(flag, ",")
	}
	var kinds []kitti.Kind
	for _, n := range names {
		k, err := kitti.ParseKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// runReplay opens the dataset described by cfg, replays it and reports the
// outcome on out.
func runReplay(ctx context.Context, cfg *config.ReplayConfig, kindsFlag string, out io.Writer) (kitti.RunStats, error) {
	if err := cfg.Validate(); err != nil {
		return kitti.RunStats{}, fmt.Errorf("invalid configuration: %w", err)
	}
	root := cfg.GetRoot()
	if root == "" {
		return kitti.RunStats{}, errors.New("no dataset root given")
	}
	monitoring.SetDebug(cfg.GetDebug())

	kinds, err := parseKinds(kindsFlag, cfg)
	if err != nil {
		return kitti.RunStats{}, err
	}

	p, err := kitti.Open(root,
		kitti.WithKinds(kinds...),
		kitti.WithFilter(func(path string) bool { return cfg.MatchSequence(filepath.Base(path)) }),
	)
	if err != nil {
		return kitti.RunStats{}, err
	}
	fmt.Fprint(out, p.Config().Summary())

	s := &sink{}
	if path := cfg.GetCatalogPath(); path != "" {
		s.db, err = replaydb.Open(path)
		if err != nil {
			return kitti.RunStats{}, fmt.Errorf("failed to open catalog: %w", err)
		}
		defer s.db.Close()
		s.session, err = s.db.StartSession(p.Config().Root, cfg.GetSpeed())
		if err != nil {
			return kitti.RunStats{}, err
		}
		log.Printf("recording replay session %s in %s", s.session, path)
	}
	if cfg.GetPlotPath() != "" {
		s.timeline = timeline.New(filepath.Base(filepath.Clean(root)))
	}
	if cfg.GetDebug() {
		s.proj = colorProjection(p.Config())
	}
	s.register(p)

	stats, runErr := p.RunContext(ctx, cfg.GetSpeed())
	if runErr != nil {
		log.Printf("replay stopped: %v", runErr)
	}

	if s.db != nil {
		if err := s.db.EndSession(s.session, sessionStats(stats)); err != nil {
			return stats, err
		}
	}
	if s.timeline != nil && s.timeline.Len() > 0 {
		if err := s.timeline.Render(cfg.GetPlotPath()); err != nil {
			return stats, err
		}
		log.Printf("timeline written to %s", cfg.GetPlotPath())
	}

	printStats(out, stats)
	if s.err != nil {
		return stats, s.err
	}
	return stats, runErr
}

// sink is the set of handlers the CLI registers: every message is logged,
// optionally catalogued and plotted, then released.
type sink struct {
	db       *replaydb.ReplayDB
	session  string
	timeline *timeline.Timeline
	proj     *kitti.CameraProjection
	err      error
}

// projectionCamera is the left color camera, image_02.
const projectionCamera = 2

// colorProjection returns the lidar projection onto the left color camera,
// or nil when the calibration cannot provide one.
func colorProjection(cfg *kitti.Config) *kitti.CameraProjection {
	proj, err := kitti.NewCameraProjection(cfg, projectionCamera)
	if err != nil {
		monitoring.Debugf("no lidar projection onto %s: %v", kitti.DirColorLeft, err)
		return nil
	}
	return proj
}

func (s *sink) record(kind kitti.Kind, ts int64, src kitti.Source, detail string) {
	monitoring.Debugf("%-12s %d %s/%s %s", kind, ts, src.Sequence, src.File, detail)
	if s.timeline != nil {
		s.timeline.Add(kind, ts)
	}
	if s.db != nil && s.err == nil {
		if err := s.db.RecordMessage(s.session, kind.String(), src.Sequence, src.Index, ts); err != nil {
			log.Printf("catalog disabled for the rest of the run: %v", err)
			s.err = err
		}
	}
}

func (s *sink) register(p *kitti.Parser) {
	stereo := func(kind kitti.Kind) kitti.StereoHandler {
		return func(cfg *kitti.Config, ts int64, f *kitti.StereoFrame) {
			b := f.Left.Bounds()
			s.record(kind, ts, f.Source, fmt.Sprintf("%dx%d", b.Dx(), b.Dy()))
			f.Release()
		}
	}
	p.RegisterStereoGray(stereo(kitti.KindStereoGray))
	p.RegisterStereoColor(stereo(kitti.KindStereoColor))
	p.RegisterLidar(func(cfg *kitti.Config, ts int64, scan *kitti.LidarScan) {
		detail := fmt.Sprintf("%d points", scan.Len())
		if s.proj != nil {
			detail += fmt.Sprintf(", %d in %s", len(s.proj.Visible(scan)), kitti.DirColorLeft)
		}
		s.record(kitti.KindLidar, ts, scan.Source, detail)
		scan.Release()
	})
	p.RegisterGPSIMU(func(cfg *kitti.Config, ts int64, g *kitti.GPSIMUSample) {
		s.record(kitti.KindGPSIMU, ts, g.Source, fmt.Sprintf("lat=%.6f lon=%.6f", g.Lat, g.Lon))
		g.Release()
	})
}

func sessionStats(stats kitti.RunStats) replaydb.SessionStats {
	out := replaydb.SessionStats{
		Emitted:        stats.Emitted,
		Sequences:      stats.Sequences,
		LoadErrors:     len(stats.LoadErrors),
		FirstTimestamp: stats.FirstTimestamp,
		LastTimestamp:  stats.LastTimestamp,
		Elapsed:        stats.Elapsed,
	}
	for _, k := range kitti.AllKinds {
		out.Handled += stats.Handled[k]
		out.Discarded += stats.Discarded[k]
	}
	return out
}

func printStats(out io.Writer, stats kitti.RunStats) {
	fmt.Fprintf(out, "Replayed %d messages from %d sequences in %v\n", stats.Emitted, stats.Sequences, stats.Elapsed)
	for _, k := range kitti.AllKinds {
		if n := stats.Total(k); n > 0 {
			fmt.Fprintf(out, "\t%s: %d\n", k, n)
		}
	}
	for _, err := range stats.LoadErrors {
		fmt.Fprintf(out, "\tskipped: %v\n", err)
	}
}
