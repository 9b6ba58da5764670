package mjr

// Frame is one indexed media packet: where it lives in the container
// and where it belongs on the reconstructed 64-bit timeline.
type Frame struct {
	// Seq is the packet's 16-bit RTP sequence number.
	Seq uint16
	// Timestamp is the wraparound-adjusted 64-bit timestamp.
	Timestamp uint64
	// Length is the stored packet length in bytes.
	Length uint16
	// Offset is the packet's absolute offset in the container file.
	Offset int64
}

// seqWrapGap is the circular comparison threshold for sequence number
// tie-breaks: a gap wider than this is treated as a 16-bit wraparound
// and the comparison sense inverts.
const seqWrapGap = 10000

// seqBefore reports whether sequence number a precedes b under circular
// 16-bit comparison. Equal sequence numbers are not ordered.
func seqBefore(a, b uint16) bool {
	if a == b {
		return false
	}
	gap := int(a) - int(b)
	if gap < 0 {
		gap = -gap
	}
	if a < b {
		return gap < seqWrapGap
	}
	// a > b: only a wraparound (wide gap) puts b logically after a.
	return gap > seqWrapGap
}

// FrameList is a timestamp-ordered index of one track's packets, built
// once per playback session and consumed read-only during playout.
//
// Invariant: for any two adjacent frames a, b the pair satisfies
// a.Timestamp < b.Timestamp, or a.Timestamp == b.Timestamp with
// seqBefore(a.Seq, b.Seq).
type FrameList struct {
	frames []Frame
}

// Len returns the number of indexed frames.
func (l *FrameList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.frames)
}

// Empty reports whether the list holds no frames.
func (l *FrameList) Empty() bool {
	return l.Len() == 0
}

// At returns the frame at position i in temporal order.
func (l *FrameList) At(i int) Frame {
	return l.frames[i]
}

// Insert places f at its ordered position, scanning backward from the
// tail. Capture streams are already nearly ordered, so the common case
// appends in O(1); heavily reordered input degrades to O(n).
func (l *FrameList) Insert(f Frame) {
	i := len(l.frames) - 1
	for i >= 0 {
		cur := l.frames[i]
		if cur.Timestamp < f.Timestamp {
			break
		}
		if cur.Timestamp == f.Timestamp && seqBefore(cur.Seq, f.Seq) {
			break
		}
		i--
	}
	// Insert after position i (i == -1 prepends at the head).
	l.frames = append(l.frames, Frame{})
	copy(l.frames[i+2:], l.frames[i+1:])
	l.frames[i+1] = f
}
