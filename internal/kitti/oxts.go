package kitti

import (
	"fmt"
	"strconv"
	"strings"
)

// oxtsFieldCount is the number of values on one OXTS record line.
const oxtsFieldCount = 30

// parseOXTS decodes one OXTS record: 25 float fields followed by five
// integer status fields.
func parseOXTS(text string) (*GPSIMUSample, error) {
	fields := strings.Fields(text)
	if len(fields) != oxtsFieldCount {
		return nil, fmt.Errorf("%w: oxts record has %d fields, want %d",
			ErrMalformedRecord, len(fields), oxtsFieldCount)
	}

	var v [oxtsFieldCount]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: oxts field %d: %v", ErrMalformedRecord, i, err)
		}
		v[i] = x
	}

	return &GPSIMUSample{
		Lat: v[0], Lon: v[1], Alt: v[2],
		Roll: v[3], Pitch: v[4], Yaw: v[5],
		VN: v[6], VE: v[7], VF: v[8], VL: v[9], VU: v[10],
		AX: v[11], AY: v[12], AZ: v[13],
		AF: v[14], AL: v[15], AU: v[16],
		WX: v[17], WY: v[18], WZ: v[19],
		WF: v[20], WL: v[21], WU: v[22],
		PosAccuracy: v[23],
		VelAccuracy: v[24],
		NavStat:     int(v[25]),
		NumSats:     int(v[26]),
		PosMode:     int(v[27]),
		VelMode:     int(v[28]),
		OriMode:     int(v[29]),
	}, nil
}
