// Package series holds bounded, multi-channel time series and the display
// window derived from them.
package series

import (
	"math"
	"sync"
	"time"
)

// DefaultMaxPoints is the default number of samples retained per channel.
const DefaultMaxPoints = 1000

// Feature channels computed by the analysis backend for each window.
var FeatureChannels = []string{
	"rms_h", "rms_v",
	"kurtosis_h", "kurtosis_v",
	"peak_h", "peak_v",
	"crest_factor_h", "crest_factor_v",
}

// SignalChannels hold raw horizontal/vertical vibration samples.
var SignalChannels = []string{"horizontal", "vertical"}

// Buffer is a fixed-capacity ring shared by a timestamp column and a set of
// named value columns. Every column is written at the same slot on each push,
// so all channels always have the same length. It is safe for concurrent use.
type Buffer struct {
	mu      sync.RWMutex
	size    int
	names   []string
	index   map[string]int
	times   []time.Time
	values  [][]float64
	head    int
	count   int
	evicted uint64
}

// Snapshot is a chronological copy of a range of the buffer (oldest first).
type Snapshot struct {
	Timestamps []time.Time
	Values     map[string][]float64
}

// Len returns the number of samples in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Timestamps)
}

// Channel returns the values for a single channel, or nil if unknown.
func (s Snapshot) Channel(name string) []float64 {
	return s.Values[name]
}

// NewBuffer creates a buffer holding up to size samples for the given channels.
// Duplicate channel names are collapsed.
func NewBuffer(size int, channels ...string) *Buffer {
	if size <= 0 {
		size = DefaultMaxPoints
	}

	b := &Buffer{
		size:  size,
		index: make(map[string]int, len(channels)),
		times: make([]time.Time, size),
	}
	for _, name := range channels {
		if _, dup := b.index[name]; dup {
			continue
		}
		b.index[name] = len(b.names)
		b.names = append(b.names, name)
		b.values = append(b.values, make([]float64, size))
	}
	return b
}

// Push appends one sample. Channels missing from values are recorded as NaN
// so every column advances together; names the buffer doesn't track are
// ignored. When the buffer is full the oldest sample is overwritten in the
// same step. Returns true if a sample was evicted.
func (b *Buffer) Push(ts time.Time, values map[string]float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	slot := b.head
	b.times[slot] = ts
	for i := range b.values {
		b.values[i][slot] = math.NaN()
	}
	for name, v := range values {
		if i, ok := b.index[name]; ok {
			b.values[i][slot] = v
		}
	}

	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
		return false
	}
	b.evicted++
	return true
}

// Len returns the number of samples currently held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap returns the maximum number of samples.
func (b *Buffer) Cap() int {
	return b.size
}

// Channels returns the tracked channel names in declaration order.
func (b *Buffer) Channels() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// Evicted returns how many samples have been dropped since creation or the last Clear.
func (b *Buffer) Evicted() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.evicted
}

// Range returns samples [start, end) in chronological order, clamped to the
// current length.
func (b *Buffer) Range(start, end int) Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rangeLocked(start, end)
}

// Last returns the most recent n samples in chronological order.
func (b *Buffer) Last(n int) Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rangeLocked(b.count-n, b.count)
}

// Clear drops every sample.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
	b.evicted = 0
}

// rangeLocked must be called with b.mu held.
func (b *Buffer) rangeLocked(start, end int) Snapshot {
	if start < 0 {
		start = 0
	}
	if end > b.count {
		end = b.count
	}
	n := end - start
	if n < 0 {
		n = 0
	}

	snap := Snapshot{
		Timestamps: make([]time.Time, n),
		Values:     make(map[string][]float64, len(b.names)),
	}
	for _, name := range b.names {
		snap.Values[name] = make([]float64, n)
	}

	// head is the next write slot, so the oldest sample sits count slots behind it
	oldest := (b.head - b.count + b.size) % b.size
	for i := 0; i < n; i++ {
		slot := (oldest + start + i) % b.size
		snap.Timestamps[i] = b.times[slot]
		for ci, name := range b.names {
			snap.Values[name][i] = b.values[ci][slot]
		}
	}
	return snap
}
