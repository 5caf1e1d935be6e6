// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"fmt"
	"sync"
)

// MaxTrace is the default TraceBuffer capacity.
const MaxTrace = 300

// TraceBuffer is a bounded FIFO of operation names. When full, the oldest
// entry is evicted.
type TraceBuffer struct {
	mu       sync.Mutex
	entries  []string
	capacity int
}

// NewTraceBuffer returns a buffer holding at most capacity entries. A
// non-positive capacity selects MaxTrace.
func NewTraceBuffer(capacity int) *TraceBuffer {
	if capacity <= 0 {
		capacity = MaxTrace
	}
	return &TraceBuffer{
		entries:  make([]string, 0, capacity),
		capacity: capacity,
	}
}

func (t *TraceBuffer) Record(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == t.capacity {
		copy(t.entries, t.entries[1:])
		t.entries = t.entries[:len(t.entries)-1]
	}
	t.entries = append(t.entries, name)
}

func (t *TraceBuffer) Recordf(format string, args ...any) {
	t.Record(fmt.Sprintf(format, args...))
}

// Snapshot returns a copy of the entries, oldest first.
func (t *TraceBuffer) Snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *TraceBuffer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *TraceBuffer) Cap() int { return t.capacity }
