package kitti

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// velodynePointSize is the on-disk size of one point: x, y, z, reflectance
// as little-endian float32.
const velodynePointSize = 16

// pointSlicePool reduces allocations by reusing large float32 slices.
// Slices are sized for ~125k points (typical HDL-64E sweep).
var pointSlicePool = sync.Pool{
	New: func() interface{} {
		return make([]float32, 0, 130000)
	},
}

// getFloat32Slice gets a slice from the pool and resets it.
func getFloat32Slice(n int) []float32 {
	s := pointSlicePool.Get().([]float32)
	if cap(s) < n {
		// Slice too small, allocate new one (rare for normal sweeps)
		pointSlicePool.Put(s)
		return make([]float32, n)
	}
	return s[:n]
}

// putFloat32Slice returns a slice to the pool.
func putFloat32Slice(s []float32) {
	// Only pool reasonably sized slices to avoid memory bloat
	if cap(s) > 0 && cap(s) <= 260000 {
		pointSlicePool.Put(s[:0])
	}
}

// LidarScan is one sweep of the spinning lidar as parallel arrays. The
// arrays come from a pool; Release hands them back, after which the scan
// is empty.
type LidarScan struct {
	X         []float32
	Y         []float32
	Z         []float32
	Intensity []float32
	Timestamp int64
	Source    Source

	released bool
}

// Point is a single lidar return in the sensor frame.
type Point struct {
	X, Y, Z   float32
	Intensity float32
}

// Len returns the number of points.
func (s *LidarScan) Len() int {
	if s == nil {
		return 0
	}
	return len(s.X)
}

// Point returns the i'th return.
func (s *LidarScan) Point(i int) Point {
	return Point{X: s.X[i], Y: s.Y[i], Z: s.Z[i], Intensity: s.Intensity[i]}
}

// Release returns the point slices to the pool.
func (s *LidarScan) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	putFloat32Slice(s.X)
	putFloat32Slice(s.Y)
	putFloat32Slice(s.Z)
	putFloat32Slice(s.Intensity)
	s.X = nil
	s.Y = nil
	s.Z = nil
	s.Intensity = nil
}

// Released reports whether Release has been called.
func (s *LidarScan) Released() bool {
	return s == nil || s.released
}

// decodeVelodyne fills a scan from the raw contents of a .bin sweep. data
// may be a memory mapping; nothing in the scan aliases it afterwards.
func decodeVelodyne(data []byte) (*LidarScan, error) {
	if len(data)%velodynePointSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-byte points",
			ErrMalformedRecord, len(data), velodynePointSize)
	}

	n := len(data) / velodynePointSize
	scan := &LidarScan{
		X:         getFloat32Slice(n),
		Y:         getFloat32Slice(n),
		Z:         getFloat32Slice(n),
		Intensity: getFloat32Slice(n),
	}
	for i := 0; i < n; i++ {
		off := i * velodynePointSize
		scan.X[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		scan.Y[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:]))
		scan.Z[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:]))
		scan.Intensity[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+12:]))
	}
	return scan, nil
}
