package kitti

import (
	"fmt"
	"image"
	"strings"
)

// Kind identifies which payload a Message carries. The numeric order is
// also the tie-break priority of the merge: gray stereo first, gps/imu last.
type Kind int

const (
	KindStereoGray Kind = iota
	KindStereoColor
	KindLidar
	KindGPSIMU

	// NumKinds is the number of message kinds.
	NumKinds = 4
)

// AllKinds lists every kind in merge priority order.
var AllKinds = []Kind{KindStereoGray, KindStereoColor, KindLidar, KindGPSIMU}

func (k Kind) String() string {
	switch k {
	case KindStereoGray:
		return "stereo_gray"
	case KindStereoColor:
		return "stereo_color"
	case KindLidar:
		return "lidar"
	case KindGPSIMU:
		return "gpsimu"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k >= KindStereoGray && k <= KindGPSIMU
}

// ParseKind accepts the String form or the short names gray, color, lidar,
// velodyne, oxts and gps.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stereo_gray", "gray", "grey":
		return KindStereoGray, nil
	case "stereo_color", "color", "colour":
		return KindStereoColor, nil
	case "lidar", "velodyne":
		return KindLidar, nil
	case "gpsimu", "gps", "imu", "oxts":
		return KindGPSIMU, nil
	}
	return 0, fmt.Errorf("unknown message kind %q", s)
}

// Payload is the sensor-specific body of a Message. Release drops the
// payload's buffers; it is safe to call more than once.
type Payload interface {
	Release()
}

// Source records where a sample was read from.
type Source struct {
	Sequence string // sequence folder name
	Index    int    // position within the modality's listing
	File     string // data file name (left image for stereo)
}

// StereoFrame is one synchronised left/right image pair. Both images share
// bounds and color model; sizes may differ between frames.
type StereoFrame struct {
	Left      image.Image
	Right     image.Image
	Color     bool
	Timestamp int64
	Source    Source
}

// Release drops the image references.
func (f *StereoFrame) Release() {
	if f == nil {
		return
	}
	f.Left = nil
	f.Right = nil
}

// Released reports whether Release has been called.
func (f *StereoFrame) Released() bool {
	return f == nil || (f.Left == nil && f.Right == nil)
}

// GPSIMUSample is one OXTS navigation record. Field units follow the
// recording unit: degrees / metres for position, radians for orientation,
// m/s, m/s² and rad/s for the motion fields.
type GPSIMUSample struct {
	Lat, Lon, Alt    float64
	Roll, Pitch, Yaw float64

	VN, VE, VF, VL, VU float64
	AX, AY, AZ         float64
	AF, AL, AU         float64
	WX, WY, WZ         float64
	WF, WL, WU         float64

	PosAccuracy float64
	VelAccuracy float64

	NavStat int
	NumSats int
	PosMode int
	VelMode int
	OriMode int

	Timestamp int64
	Source    Source

	released bool
}

// Release marks the sample as disposed; it holds no buffers of its own.
func (g *GPSIMUSample) Release() {
	if g != nil {
		g.released = true
	}
}

// Released reports whether Release has been called.
func (g *GPSIMUSample) Released() bool {
	return g == nil || g.released
}

// Message is the tagged union handed out by the merge: exactly one payload,
// identified by Kind, with its timestamp in milliseconds since the epoch.
// A Message has a single owner. Take* moves the payload out (the Message
// forgets it) and Release disposes of whatever is still held.
type Message struct {
	kind      Kind
	timestamp int64
	payload   Payload
}

// NewStereoMessage wraps a frame; its Color flag selects the kind.
func NewStereoMessage(f *StereoFrame) *Message {
	kind := KindStereoGray
	if f.Color {
		kind = KindStereoColor
	}
	return &Message{kind: kind, timestamp: f.Timestamp, payload: f}
}

// NewLidarMessage wraps a scan.
func NewLidarMessage(s *LidarScan) *Message {
	return &Message{kind: KindLidar, timestamp: s.Timestamp, payload: s}
}

// NewGPSIMUMessage wraps a navigation sample.
func NewGPSIMUMessage(g *GPSIMUSample) *Message {
	return &Message{kind: KindGPSIMU, timestamp: g.Timestamp, payload: g}
}

// Kind returns the payload discriminant.
func (m *Message) Kind() Kind { return m.kind }

// Timestamp returns the sample time in milliseconds.
func (m *Message) Timestamp() int64 { return m.timestamp }

// Owned reports whether the Message still holds its payload.
func (m *Message) Owned() bool { return m.payload != nil }

// TakeStereo moves the stereo payload out. It returns nil when the message
// is not stereo or the payload was already taken or released.
func (m *Message) TakeStereo() *StereoFrame {
	f, ok := m.payload.(*StereoFrame)
	if !ok {
		return nil
	}
	m.payload = nil
	return f
}

// TakeLidar moves the lidar payload out, or returns nil.
func (m *Message) TakeLidar() *LidarScan {
	s, ok := m.payload.(*LidarScan)
	if !ok {
		return nil
	}
	m.payload = nil
	return s
}

// TakeGPSIMU moves the gps/imu payload out, or returns nil.
func (m *Message) TakeGPSIMU() *GPSIMUSample {
	g, ok := m.payload.(*GPSIMUSample)
	if !ok {
		return nil
	}
	m.payload = nil
	return g
}

// Release disposes of the payload if the Message still owns it.
func (m *Message) Release() {
	if m.payload == nil {
		return
	}
	m.payload.Release()
	m.payload = nil
}

func (m *Message) String() string {
	return fmt.Sprintf("%s@%d", m.kind, m.timestamp)
}
