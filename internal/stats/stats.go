// Package stats tracks process-lifetime transfer counters. Counters start at
// zero, are never persisted, and are incremented atomically at stream
// initiation with the number of bytes intended to be sent.
package stats

import "sync/atomic"

type Transfer struct {
	totalBytes atomic.Uint64
	requests   atomic.Uint64
}

func NewTransfer() *Transfer {
	return &Transfer{}
}

// RecordStream accounts one stream initiation of the given intended length.
func (t *Transfer) RecordStream(bytes int64) {
	if bytes < 0 {
		bytes = 0
	}
	t.totalBytes.Add(uint64(bytes))
	t.requests.Add(1)
}

// Snapshot returns the accumulated byte count and request count.
func (t *Transfer) Snapshot() (totalBytes, requests uint64) {
	return t.totalBytes.Load(), t.requests.Load()
}
