package kitti

import (
	"path/filepath"

	"github.com/banshee-data/kitti.replay/internal/monitoring"
)

// Merger produces the messages of every enabled modality in non-decreasing
// timestamp order. Queues are filled one sequence folder at a time, and
// only once every queue has drained, so at most one folder's samples are
// held in memory. Queues are assumed to be sorted already; the Merger only
// selects.
type Merger struct {
	source  QueueSource
	kinds   []Kind
	pending []string
	queues  [NumKinds][]*Message

	loaded int
	errs   []error
}

// NewMerger creates a Merger over the given sequence folders (processed in
// the order given) for the given kinds.
func NewMerger(source QueueSource, sequences []string, kinds []Kind) *Merger {
	enabled := make([]Kind, 0, len(kinds))
	for _, k := range AllKinds {
		for _, want := range kinds {
			if k == want {
				enabled = append(enabled, k)
				break
			}
		}
	}
	return &Merger{
		source:  source,
		kinds:   enabled,
		pending: append([]string(nil), sequences...),
	}
}

// FetchNext removes and returns the earliest queued message across all
// modalities, loading the next sequence folder when every queue is empty.
// Equal timestamps are resolved by kind priority. It returns false once
// every folder has been read and drained, and keeps returning false after
// that.
func (m *Merger) FetchNext() (*Message, bool) {
	for m.empty() {
		if len(m.pending) == 0 {
			return nil, false
		}
		m.loadNext()
	}

	best := -1
	for _, k := range m.kinds {
		q := m.queues[k]
		if len(q) == 0 {
			continue
		}
		// strict < keeps the earlier kind on ties
		if best < 0 || q[0].Timestamp() < m.queues[best][0].Timestamp() {
			best = int(k)
		}
	}

	q := m.queues[best]
	msg := q[0]
	q[0] = nil
	m.queues[best] = q[1:]
	return msg, true
}

func (m *Merger) empty() bool {
	for _, k := range m.kinds {
		if len(m.queues[k]) > 0 {
			return false
		}
	}
	return true
}

// loadNext scans the next pending folder for every enabled kind. A kind
// that fails to load contributes nothing for this folder.
func (m *Merger) loadNext() {
	seq := m.pending[0]
	m.pending = m.pending[1:]
	m.loaded++

	total := 0
	for _, k := range m.kinds {
		msgs, err := m.source.Build(seq, k)
		if err != nil {
			lerr := &LoadError{Sequence: filepath.Base(seq), Kind: k, Err: err}
			m.errs = append(m.errs, lerr)
			monitoring.Logf("kitti: skipping %v", lerr)
			continue
		}
		m.queues[k] = append(m.queues[k], msgs...)
		total += len(msgs)
	}
	monitoring.Debugf("kitti: loaded %s: %d messages", seq, total)
}

// Errors returns the load errors recorded so far.
func (m *Merger) Errors() []error {
	return append([]error(nil), m.errs...)
}

// Loaded returns how many sequence folders have been scanned.
func (m *Merger) Loaded() int {
	return m.loaded
}

// Pending returns how many sequence folders have not been scanned yet.
func (m *Merger) Pending() int {
	return len(m.pending)
}

// Queued returns the number of messages waiting in the queues.
func (m *Merger) Queued() int {
	n := 0
	for _, q := range m.queues {
		n += len(q)
	}
	return n
}

// Close releases every queued message and drops the unscanned folders.
// FetchNext reports exhaustion afterwards.
func (m *Merger) Close() {
	for k := range m.queues {
		releaseAll(m.queues[k])
		m.queues[k] = nil
	}
	m.pending = nil
}
