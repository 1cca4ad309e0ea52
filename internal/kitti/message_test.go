package kitti

import (
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindStereoGray, "stereo_gray"},
		{KindStereoColor, "stereo_color"},
		{KindLidar, "lidar"},
		{KindGPSIMU, "gpsimu"},
		{Kind(9), "Kind(9)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestKind_PriorityOrder(t *testing.T) {
	for i := 1; i < len(AllKinds); i++ {
		if AllKinds[i-1] >= AllKinds[i] {
			t.Errorf("AllKinds not in priority order at %d: %v", i, AllKinds)
		}
	}
	if len(AllKinds) != NumKinds {
		t.Errorf("len(AllKinds) = %d, want %d", len(AllKinds), NumKinds)
	}
	if Kind(-1).Valid() || Kind(NumKinds).Valid() {
		t.Error("out of range kinds must not be valid")
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"stereo_gray": KindStereoGray,
		"Gray":        KindStereoGray,
		"colour":      KindStereoColor,
		" lidar ":     KindLidar,
		"velodyne":    KindLidar,
		"oxts":        KindGPSIMU,
		"gpsimu":      KindGPSIMU,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		if err != nil {
			t.Errorf("ParseKind(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseKind(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseKind("radar"); err == nil {
		t.Error("ParseKind(radar): expected error")
	}
}

func TestMessage_KindFromPayload(t *testing.T) {
	tests := []struct {
		msg  *Message
		want Kind
	}{
		{NewStereoMessage(&StereoFrame{}), KindStereoGray},
		{NewStereoMessage(&StereoFrame{Color: true}), KindStereoColor},
		{NewLidarMessage(&LidarScan{}), KindLidar},
		{NewGPSIMUMessage(&GPSIMUSample{}), KindGPSIMU},
	}
	for _, tt := range tests {
		if got := tt.msg.Kind(); got != tt.want {
			t.Errorf("Kind() = %v, want %v", got, tt.want)
		}
	}

	msg := NewLidarMessage(&LidarScan{Timestamp: 42})
	if got := msg.Timestamp(); got != 42 {
		t.Errorf("Timestamp() = %d, want 42", got)
	}
	if got := msg.String(); got != "lidar@42" {
		t.Errorf("String() = %q, want %q", got, "lidar@42")
	}
}

func TestMessage_TakeMovesPayload(t *testing.T) {
	scan, err := decodeVelodyne(make([]byte, 32))
	if err != nil {
		t.Fatalf("decodeVelodyne failed: %v", err)
	}
	msg := NewLidarMessage(scan)

	if !msg.Owned() {
		t.Fatal("new message should own its payload")
	}
	if msg.TakeStereo() != nil || msg.TakeGPSIMU() != nil {
		t.Error("wrong kind must not move the payload")
	}
	if !msg.Owned() {
		t.Fatal("payload moved by a wrong-kind take")
	}

	got := msg.TakeLidar()
	if got != scan {
		t.Fatalf("TakeLidar returned %p, want %p", got, scan)
	}
	if msg.Owned() {
		t.Error("message still owns the payload after TakeLidar")
	}
	if msg.TakeLidar() != nil {
		t.Error("second take should return nil")
	}

	// Releasing the emptied message leaves the moved payload alone.
	msg.Release()
	if got.Released() {
		t.Error("releasing the message released the moved scan")
	}
	if got.Len() != 2 {
		t.Errorf("Len() = %d, want 2", got.Len())
	}
	got.Release()
	if !got.Released() {
		t.Error("scan not released")
	}
}

func TestMessage_ReleaseIdempotent(t *testing.T) {
	frame := &StereoFrame{Left: blankImage(), Right: blankImage()}
	msg := NewStereoMessage(frame)

	msg.Release()
	msg.Release()
	if !frame.Released() {
		t.Error("frame not released")
	}
	if msg.Owned() || msg.TakeStereo() != nil {
		t.Error("released message still hands out a payload")
	}

	sample := &GPSIMUSample{}
	NewGPSIMUMessage(sample).Release()
	if !sample.Released() {
		t.Error("sample not released")
	}
}

func TestPayloadRelease_NilSafe(t *testing.T) {
	var f *StereoFrame
	var s *LidarScan
	var g *GPSIMUSample
	f.Release()
	s.Release()
	g.Release()
	if !f.Released() || !s.Released() || !g.Released() {
		t.Error("nil payloads should report released")
	}
	if s.Len() != 0 {
		t.Errorf("nil scan Len() = %d, want 0", s.Len())
	}
}
