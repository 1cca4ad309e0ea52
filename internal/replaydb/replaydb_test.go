package replaydb

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *ReplayDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_MigratesSchema(t *testing.T) {
	db := openTestDB(t)

	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)

	for _, table := range []string{"replay_sessions", "replay_messages"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	db, err := Open(path)
	require.NoError(t, err)
	id, err := db.StartSession("/data/", 1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	s, err := db.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, "/data/", s.Root)
}

func TestOpen_Memory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.StartSession("/data/", 1)
	assert.NoError(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)

	id, err := db.StartSession("/data/kitti/", 2)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "session id should be a uuid")

	s, err := db.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.Speed)
	assert.NotEmpty(t, s.AppVersion)
	assert.Greater(t, s.StartTimestamp, 0.0)
	assert.Nil(t, s.EndTimestamp)

	stats := SessionStats{
		Emitted:        8,
		Handled:        6,
		Discarded:      2,
		Sequences:      2,
		LoadErrors:     1,
		FirstTimestamp: 100,
		LastTimestamp:  300,
		Elapsed:        1500 * time.Millisecond,
	}
	require.NoError(t, db.EndSession(id, stats))

	s, err = db.GetSession(id)
	require.NoError(t, err)
	require.NotNil(t, s.EndTimestamp)
	assert.GreaterOrEqual(t, *s.EndTimestamp, s.StartTimestamp)
	assert.Equal(t, stats, s.Stats)
}

func TestRecordMessage(t *testing.T) {
	db := openTestDB(t)

	a, err := db.StartSession("/data/", 1)
	require.NoError(t, err)
	b, err := db.StartSession("/data/", 1)
	require.NoError(t, err)

	require.NoError(t, db.RecordMessage(a, "stereo_gray", "drive_0001", 0, 100))
	require.NoError(t, db.RecordMessage(b, "gpsimu", "drive_0001", 0, 90))
	require.NoError(t, db.RecordMessage(a, "lidar", "drive_0001", 0, 150))

	msgs, err := db.SessionMessages(a)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "stereo_gray", msgs[0].Kind)
	assert.Equal(t, int64(100), msgs[0].TimestampMs)
	assert.Equal(t, "lidar", msgs[1].Kind)
	assert.Equal(t, "drive_0001", msgs[1].Sequence)
	assert.Less(t, msgs[0].ID, msgs[1].ID)

	none, err := db.SessionMessages(uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordMessage_UnknownSession(t *testing.T) {
	db := openTestDB(t)
	err := db.RecordMessage("no-such-session", "lidar", "seq", 0, 1)
	assert.Error(t, err, "foreign key should reject unknown sessions")
}

func TestUnknownSession(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetSession("missing")
	assert.True(t, errors.Is(err, ErrUnknownSession), "got %v", err)

	err = db.EndSession("missing", SessionStats{})
	assert.True(t, errors.Is(err, ErrUnknownSession), "got %v", err)
}
