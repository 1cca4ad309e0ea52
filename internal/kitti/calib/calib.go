// Package calib loads the dataset calibration files and turns their
// coefficient groups into transform matrices.
//
// Each file is a flat "name: v0 v1 v2 ..." document. It is read as YAML so
// that quoting and comments behave the way the recording tools emit them;
// every value is then split on whitespace and parsed as float64.
package calib

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/kitti.replay/internal/monitoring"
)

// File names of the three calibration tables at the dataset root.
const (
	CamToCamFile  = "calib_cam_to_cam.txt"
	IMUToVeloFile = "calib_imu_to_velo.txt"
	VeloToCamFile = "calib_velo_to_cam.txt"
)

// ErrMissingGroup is returned when a transform needs a group the table lacks
// or holds with the wrong number of values.
var ErrMissingGroup = errors.New("calibration group missing")

// Table maps a coefficient group name (e.g. "R", "T", "P_rect_02") to its
// values in file order.
type Table map[string][]float64

// Parse reads one calibration document. Groups whose values are not all
// numeric (calib_time) are skipped.
func Parse(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse calibration: %w", err)
	}

	table := Table{}
	if len(doc.Content) == 0 {
		return table, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("failed to parse calibration: expected key/value document, got node kind %d", root.Kind)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("calibration group %q: expected scalar values", key)
		}
		values, err := parseValues(val.Value)
		if err != nil {
			monitoring.Debugf("calib: skipping non-numeric group %q: %v", key, err)
			continue
		}
		table[key] = values
	}
	return table, nil
}

func parseValues(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Keys returns the group names in sorted order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Group returns the named group, checking its length when want > 0.
func (t Table) Group(name string, want int) ([]float64, error) {
	v, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingGroup, name)
	}
	if want > 0 && len(v) != want {
		return nil, fmt.Errorf("%w: %q has %d values, want %d", ErrMissingGroup, name, len(v), want)
	}
	return v, nil
}
