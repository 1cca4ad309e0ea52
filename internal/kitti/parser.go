package kitti

import (
	"context"
	"time"

	"github.com/banshee-data/kitti.replay/internal/monitoring"
	"github.com/banshee-data/kitti.replay/internal/timeutil"
)

// StereoHandler receives a stereo frame. The handler owns the frame and
// should Release it once done.
type StereoHandler func(cfg *Config, timestamp int64, frame *StereoFrame)

// LidarHandler receives a lidar scan and owns it.
type LidarHandler func(cfg *Config, timestamp int64, scan *LidarScan)

// GPSIMUHandler receives a gps/imu sample and owns it.
type GPSIMUHandler func(cfg *Config, timestamp int64, sample *GPSIMUSample)

// Parser replays an opened dataset: it drains a Merger and hands each
// message to the handler registered for its kind, releasing the payload
// itself when nobody is registered.
type Parser struct {
	cfg       Config
	sequences []string
	kinds     []Kind
	source    QueueSource
	clock     timeutil.Clock

	onStereoGray  StereoHandler
	onStereoColor StereoHandler
	onLidar       LidarHandler
	onGPSIMU      GPSIMUHandler
}

// RunStats summarises one replay.
type RunStats struct {
	// Speed is the requested playback multiplier. It is recorded only;
	// replay always runs as fast as the handlers return.
	Speed float64

	Emitted   int
	Handled   [NumKinds]int
	Discarded [NumKinds]int

	Sequences  int
	LoadErrors []error

	FirstTimestamp int64
	LastTimestamp  int64
	Elapsed        time.Duration
}

// Config returns the dataset configuration shared with every handler.
func (p *Parser) Config() *Config {
	return &p.cfg
}

// Sequences returns the sequence folders that will be replayed, in order.
func (p *Parser) Sequences() []string {
	return append([]string(nil), p.sequences...)
}

// Kinds returns the kinds that will be loaded, in merge priority order.
func (p *Parser) Kinds() []Kind {
	return append([]Kind(nil), p.kinds...)
}

// RegisterStereoGray sets the gray stereo handler, replacing any previous
// one. nil unregisters.
func (p *Parser) RegisterStereoGray(h StereoHandler) { p.onStereoGray = h }

// RegisterStereoColor sets the color stereo handler.
func (p *Parser) RegisterStereoColor(h StereoHandler) { p.onStereoColor = h }

// RegisterLidar sets the lidar handler.
func (p *Parser) RegisterLidar(h LidarHandler) { p.onLidar = h }

// RegisterGPSIMU sets the gps/imu handler.
func (p *Parser) RegisterGPSIMU(h GPSIMUHandler) { p.onGPSIMU = h }

// NewMerger returns a fresh Merger over the dataset for callers that want to
// pull messages themselves instead of registering handlers.
func (p *Parser) NewMerger() *Merger {
	return NewMerger(p.source, p.sequences, p.kinds)
}

// Run replays the whole dataset on the calling goroutine and returns once
// every sequence has been emitted. speed is accepted for compatibility and
// has no effect on ordering or timing.
func (p *Parser) Run(speed float64) RunStats {
	stats, _ := p.RunContext(context.Background(), speed)
	return stats
}

// RunContext is Run with a stop signal checked between messages. When ctx
// ends, messages still queued are released and ctx.Err() is returned.
func (p *Parser) RunContext(ctx context.Context, speed float64) (stats RunStats, err error) {
	stats.Speed = speed
	if speed != 1 {
		monitoring.Debugf("kitti: playback speed %.2f ignored, replaying unpaced", speed)
	}

	start := p.clock.Now()
	m := p.NewMerger()
	defer func() {
		stats.Sequences = m.Loaded()
		stats.LoadErrors = m.Errors()
		stats.Elapsed = p.clock.Since(start)
	}()

	for {
		if err = ctx.Err(); err != nil {
			m.Close()
			return stats, err
		}
		msg, ok := m.FetchNext()
		if !ok {
			return stats, nil
		}

		if stats.Emitted == 0 {
			stats.FirstTimestamp = msg.Timestamp()
		}
		stats.LastTimestamp = msg.Timestamp()
		stats.Emitted++

		if p.dispatch(msg) {
			stats.Handled[msg.Kind()]++
		} else {
			stats.Discarded[msg.Kind()]++
		}
	}
}

// dispatch hands msg to its handler, or releases it. It reports whether a
// handler took the payload.
func (p *Parser) dispatch(msg *Message) bool {
	ts := msg.Timestamp()
	monitoring.Debugf("kitti: dispatch %v", msg)

	switch msg.Kind() {
	case KindStereoGray:
		if p.onStereoGray != nil {
			p.onStereoGray(&p.cfg, ts, msg.TakeStereo())
			return true
		}
	case KindStereoColor:
		if p.onStereoColor != nil {
			p.onStereoColor(&p.cfg, ts, msg.TakeStereo())
			return true
		}
	case KindLidar:
		if p.onLidar != nil {
			p.onLidar(&p.cfg, ts, msg.TakeLidar())
			return true
		}
	case KindGPSIMU:
		if p.onGPSIMU != nil {
			p.onGPSIMU(&p.cfg, ts, msg.TakeGPSIMU())
			return true
		}
	}

	msg.Release()
	return false
}

// Total returns handled plus discarded messages of kind k.
func (s RunStats) Total(k Kind) int {
	return s.Handled[k] + s.Discarded[k]
}
