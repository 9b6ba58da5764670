package mjr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFrameListOrderedInsert verifies that out-of-order insertion
// still yields a timestamp-ordered list.
func TestFrameListOrderedInsert(t *testing.T) {
	list := &FrameList{}
	for _, ts := range []uint64{100, 300, 200, 500, 400} {
		list.Insert(Frame{Timestamp: ts, Seq: uint16(ts)})
	}

	require.Equal(t, 5, list.Len())
	for i := 1; i < list.Len(); i++ {
		assert.Less(t, list.At(i-1).Timestamp, list.At(i).Timestamp)
	}
}

// TestFrameListAppendFastPath verifies already-ordered input appends
// at the tail.
func TestFrameListAppendFastPath(t *testing.T) {
	list := &FrameList{}
	for i := 0; i < 100; i++ {
		list.Insert(Frame{Timestamp: uint64(i * 960), Seq: uint16(i)})
	}
	require.Equal(t, 100, list.Len())
	assert.Equal(t, uint64(99*960), list.At(99).Timestamp)
}

// TestFrameListHeadInsert verifies a frame earlier than everything
// else lands at the head.
func TestFrameListHeadInsert(t *testing.T) {
	list := &FrameList{}
	list.Insert(Frame{Timestamp: 200, Seq: 2})
	list.Insert(Frame{Timestamp: 300, Seq: 3})
	list.Insert(Frame{Timestamp: 100, Seq: 1})

	assert.Equal(t, uint64(100), list.At(0).Timestamp)
	assert.Equal(t, uint64(300), list.At(2).Timestamp)
}

// TestFrameListSequenceTieBreak verifies that frames sharing a
// timestamp are ordered by sequence number.
func TestFrameListSequenceTieBreak(t *testing.T) {
	list := &FrameList{}
	list.Insert(Frame{Timestamp: 9000, Seq: 11})
	list.Insert(Frame{Timestamp: 9000, Seq: 10})
	list.Insert(Frame{Timestamp: 9000, Seq: 12})

	require.Equal(t, 3, list.Len())
	assert.Equal(t, uint16(10), list.At(0).Seq)
	assert.Equal(t, uint16(11), list.At(1).Seq)
	assert.Equal(t, uint16(12), list.At(2).Seq)
}

// TestFrameListSequenceWraparound verifies the circular tie-break: a
// tiny sequence number arriving after one near 65535 with the same
// timestamp is a wraparound and orders later, not earlier.
func TestFrameListSequenceWraparound(t *testing.T) {
	list := &FrameList{}
	list.Insert(Frame{Timestamp: 9000, Seq: 65530})
	list.Insert(Frame{Timestamp: 9000, Seq: 3})

	require.Equal(t, 2, list.Len())
	assert.Equal(t, uint16(65530), list.At(0).Seq)
	assert.Equal(t, uint16(3), list.At(1).Seq)
}

// TestSeqBefore pins the circular comparison rule: plain ordering for
// narrow gaps, inverted for gaps wider than the wraparound threshold.
func TestSeqBefore(t *testing.T) {
	tests := []struct {
		name string
		a, b uint16
		want bool
	}{
		{"plain less", 10, 11, true},
		{"plain greater", 11, 10, false},
		{"equal unordered", 7, 7, false},
		{"wrap: high precedes low", 65530, 3, true},
		{"wrap: low follows high", 3, 65530, false},
		{"wide forward gap not before", 0, 20000, false},
		{"wide backward gap is before", 20000, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, seqBefore(tt.a, tt.b))
		})
	}
}
