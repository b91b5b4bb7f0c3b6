package series

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(i int) time.Time {
	return epoch.Add(time.Duration(i) * time.Second)
}

func TestNewBuffer(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		expected int
	}{
		{"default size", 0, DefaultMaxPoints},
		{"negative size", -1, DefaultMaxPoints},
		{"custom size", 100, 100},
		{"small size", 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer(tt.size, "rms_h")
			assert.Equal(t, tt.expected, b.Cap())
			assert.Equal(t, 0, b.Len())
		})
	}
}

func TestNewBuffer_DuplicateChannels(t *testing.T) {
	b := NewBuffer(4, "rms_h", "rms_v", "rms_h")
	assert.Equal(t, []string{"rms_h", "rms_v"}, b.Channels())
}

func TestBufferPush(t *testing.T) {
	b := NewBuffer(10, FeatureChannels...)

	evicted := b.Push(at(0), map[string]float64{"rms_h": 0.5, "kurtosis_v": 3.1})
	assert.False(t, evicted)
	require.Equal(t, 1, b.Len())

	snap := b.Last(1)
	assert.Equal(t, []time.Time{at(0)}, snap.Timestamps)
	assert.Equal(t, []float64{0.5}, snap.Channel("rms_h"))
	assert.Equal(t, []float64{3.1}, snap.Channel("kurtosis_v"))
}

func TestBufferPush_MissingChannelsAreNaN(t *testing.T) {
	b := NewBuffer(10, "rms_h", "rms_v")

	b.Push(at(0), map[string]float64{"rms_h": 1})
	snap := b.Last(1)

	require.Len(t, snap.Channel("rms_v"), 1)
	assert.True(t, math.IsNaN(snap.Channel("rms_v")[0]))
}

func TestBufferPush_UnknownChannelIgnored(t *testing.T) {
	b := NewBuffer(10, "rms_h")

	b.Push(at(0), map[string]float64{"bogus": 9})
	snap := b.Last(1)

	assert.Nil(t, snap.Channel("bogus"))
	assert.Len(t, snap.Values, 1)
}

func TestBufferEqualLengthInvariant(t *testing.T) {
	b := NewBuffer(7, FeatureChannels...)

	inputs := []map[string]float64{
		{"rms_h": 1},
		{},
		{"rms_v": 2, "peak_h": 3},
		nil,
		{"crest_factor_v": 4, "kurtosis_h": 5, "rms_h": 6},
	}

	for i := 0; i < 40; i++ {
		b.Push(at(i), inputs[i%len(inputs)])

		snap := b.Range(0, b.Len())
		for _, name := range FeatureChannels {
			assert.Len(t, snap.Channel(name), snap.Len(), "channel %s at step %d", name, i)
		}
		assert.LessOrEqual(t, b.Len(), b.Cap())
	}
}

func TestBufferOverflow_FIFO(t *testing.T) {
	b := NewBuffer(5, "rms_h")

	for i := 0; i < 8; i++ {
		evicted := b.Push(at(i), map[string]float64{"rms_h": float64(i)})
		assert.Equal(t, i >= 5, evicted, "push %d", i)
	}

	assert.Equal(t, 5, b.Len())
	assert.Equal(t, uint64(3), b.Evicted())

	snap := b.Range(0, 100)
	assert.Equal(t, []float64{3, 4, 5, 6, 7}, snap.Channel("rms_h"))
	assert.Equal(t, []time.Time{at(3), at(4), at(5), at(6), at(7)}, snap.Timestamps)
}

func TestBufferRange(t *testing.T) {
	b := NewBuffer(10, "v")
	for i := 0; i < 7; i++ {
		b.Push(at(i), map[string]float64{"v": float64(i * 10)})
	}

	tests := []struct {
		name       string
		start, end int
		want       []float64
	}{
		{"all", 0, 7, []float64{0, 10, 20, 30, 40, 50, 60}},
		{"middle", 2, 5, []float64{20, 30, 40}},
		{"end clamped", 5, 100, []float64{50, 60}},
		{"negative start clamped", -3, 2, []float64{0, 10}},
		{"empty when start past end", 6, 3, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := b.Range(tt.start, tt.end)
			assert.Equal(t, tt.want, snap.Channel("v"))
			assert.Equal(t, len(tt.want), snap.Len())
		})
	}
}

func TestBufferLast(t *testing.T) {
	b := NewBuffer(4, "v")
	for i := 0; i < 6; i++ {
		b.Push(at(i), map[string]float64{"v": float64(i)})
	}

	assert.Equal(t, []float64{4, 5}, b.Last(2).Channel("v"))
	assert.Equal(t, []float64{2, 3, 4, 5}, b.Last(10).Channel("v"))
	assert.Empty(t, b.Last(0).Channel("v"))
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer(3, "v")
	for i := 0; i < 5; i++ {
		b.Push(at(i), map[string]float64{"v": float64(i)})
	}

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Zero(t, b.Evicted())
	assert.Zero(t, b.Range(0, 10).Len())

	b.Push(at(9), map[string]float64{"v": 9})
	assert.Equal(t, []float64{9}, b.Last(5).Channel("v"))
}

func TestBufferSignalChannels(t *testing.T) {
	b := NewBuffer(2, SignalChannels...)

	b.Push(at(0), map[string]float64{"horizontal": 0.1, "vertical": -0.1})
	b.Push(at(1), map[string]float64{"horizontal": 0.2, "vertical": -0.2})
	b.Push(at(2), map[string]float64{"horizontal": 0.3, "vertical": -0.3})

	snap := b.Range(0, 2)
	assert.Equal(t, []float64{0.2, 0.3}, snap.Channel("horizontal"))
	assert.Equal(t, []float64{-0.2, -0.3}, snap.Channel("vertical"))
}

func TestBufferConcurrentAccess(t *testing.T) {
	b := NewBuffer(50, "v")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Push(at(i), map[string]float64{"v": float64(i)})
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := b.Last(10)
				assert.Len(t, snap.Channel("v"), snap.Len())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, b.Len())
}
