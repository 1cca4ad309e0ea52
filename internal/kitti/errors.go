package kitti

import (
	"errors"
	"fmt"
)

var (
	// ErrDatasetNotFound is returned by Open when the root path is missing
	// or is not a directory.
	ErrDatasetNotFound = errors.New("dataset root not found")

	// ErrCountMismatch means a modality has a different number of sample
	// files than timestamp lines.
	ErrCountMismatch = errors.New("sample count does not match timestamp count")

	// ErrStereoMismatch means the left and right cameras disagree on file
	// names, image size or color model.
	ErrStereoMismatch = errors.New("stereo pair mismatch")

	// ErrMalformedRecord is returned for sample files that cannot be decoded.
	ErrMalformedRecord = errors.New("malformed sample record")

	// ErrNotRigid means a calibration transform is not a proper rotation
	// plus translation.
	ErrNotRigid = errors.New("calibration transform is not rigid")
)

// LoadError records a modality that was skipped for one sequence folder.
type LoadError struct {
	Sequence string
	Kind     Kind
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("sequence %s: %s: %v", e.Sequence, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
