package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/kitti.replay/internal/config"
	"github.com/banshee-data/kitti.replay/internal/kitti"
	"github.com/banshee-data/kitti.replay/internal/monitoring"
	"github.com/banshee-data/kitti.replay/internal/replaydb"
	"github.com/banshee-data/kitti.replay/internal/testutil"
	"github.com/banshee-data/kitti.replay/internal/timeutil"
)

func TestMain(m *testing.M) {
	timeutil.Location = time.UTC
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func writeDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	w := testutil.OSWriter(t)
	testutil.WriteCalibration(w, root)

	seq1 := filepath.Join(root, "2011_09_26_drive_0001_sync")
	testutil.WriteStereo(w, seq1, false, []int64{100, 200})
	testutil.WriteLidar(w, seq1, []int64{150})
	testutil.WriteOXTS(w, seq1, []int64{120})

	seq2 := filepath.Join(root, "2011_09_26_drive_0002_sync")
	testutil.WriteStereo(w, seq2, true, []int64{300})
	testutil.WriteLidar(w, seq2, []int64{310})
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInfoCommand(t *testing.T) {
	root := writeDataset(t)

	out, err := execute(t, "info", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Current Sensor Status:")
	assert.Contains(t, out, "\tGray Stereo: true\n")
	assert.Contains(t, out, "\tVelo to Cam: true\n")
	assert.Contains(t, out, "Sequences: 2\n")
}

func TestInfoCommand_MissingRoot(t *testing.T) {
	_, err := execute(t, "info", filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, kitti.ErrDatasetNotFound)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "kitti-replay dev"), out)
}

func TestRunCommand_CatalogAndPlot(t *testing.T) {
	root := writeDataset(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	plotPath := filepath.Join(dir, "timeline.png")

	out, err := execute(t, "run", root, "--db", dbPath, "--plot", plotPath, "--speed", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 6 messages from 2 sequences")

	_, err = os.Stat(plotPath)
	assert.NoError(t, err, "timeline should be written")

	db, err := replaydb.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var sessionID string
	require.NoError(t, db.QueryRow(`SELECT session_id FROM replay_sessions`).Scan(&sessionID))
	s, err := db.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.Speed)
	assert.Equal(t, 6, s.Stats.Emitted)
	assert.Equal(t, 6, s.Stats.Handled)

	msgs, err := db.SessionMessages(sessionID)
	require.NoError(t, err)
	var got []string
	for _, m := range msgs {
		got = append(got, m.Kind)
	}
	assert.Equal(t, []string{
		"stereo_gray", "gpsimu", "lidar", "stereo_gray",
		"stereo_color", "lidar",
	}, got)
}

func TestRunCommand_VerboseProjectsLidar(t *testing.T) {
	root := writeDataset(t)

	var logs []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logs = append(logs, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() {
		monitoring.SetLogger(nil)
		monitoring.SetDebug(false)
	})

	_, err := execute(t, "run", root, "-v", "--kinds", "lidar")
	require.NoError(t, err)

	var lidar []string
	for _, l := range logs {
		if strings.HasPrefix(l, "lidar") {
			lidar = append(lidar, l)
		}
	}
	require.Len(t, lidar, 2)
	for _, l := range lidar {
		assert.Contains(t, l, "3 points, 2 in image_02")
	}
}

func TestRunCommand_Kinds(t *testing.T) {
	root := writeDataset(t)

	out, err := execute(t, "run", root, "--kinds", "lidar")
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 2 messages")
	assert.Contains(t, out, "\tlidar: 2\n")

	_, err = execute(t, "run", root, "--kinds", "radar")
	assert.Error(t, err)
}

func TestRunReplay_SequenceGlob(t *testing.T) {
	root := writeDataset(t)
	glob := "*_0002_sync"
	cfg := config.Empty()
	cfg.Root = &root
	cfg.SequenceGlob = &glob

	var out bytes.Buffer
	stats, err := runReplay(context.Background(), cfg, "", &out)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Emitted)
	assert.Equal(t, 1, stats.Sequences)
}

func TestRunReplay_NoRoot(t *testing.T) {
	var out bytes.Buffer
	_, err := runReplay(context.Background(), config.Empty(), "", &out)
	assert.Error(t, err)
}

func TestRunReplay_Cancelled(t *testing.T) {
	root := writeDataset(t)
	cfg := config.Empty()
	cfg.Root = &root

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	stats, err := runReplay(ctx, cfg, "", &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stats.Emitted)
}
