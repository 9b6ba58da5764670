package rtpctx

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// Direction identifies which media sub-stream a packet belongs to.
// Each direction is normalized independently.
type Direction int

const (
	// DirectionAudio is the audio sub-stream.
	DirectionAudio Direction = iota
	// DirectionVideo is the video sub-stream.
	DirectionVideo
)

// String returns a human-readable direction name for logging.
func (d Direction) String() string {
	if d == DirectionVideo {
		return "video"
	}
	return "audio"
}

// Clock rates in kHz used to convert wall-clock gaps into RTP ticks.
const (
	videoClockKHz = 90
	audioClockKHz = 48
	// narrowbandClockKHz applies to G.711/G.722 payload types (0, 8, 9).
	narrowbandClockKHz = 8
)

// pauseTimestampNudge is added to the timestamp anchor when resuming
// from a sequence pause, guaranteeing forward progress after idling.
const pauseTimestampNudge = 2000

// streamState is the rewriting state of one direction. It is mutated
// once per packet on the owning job's goroutine; packets of the same
// direction are never rewritten concurrently.
type streamState struct {
	lastSSRC    uint32
	baseTS      uint32
	baseTSPrev  uint32
	lastTS      uint32
	baseSeq     uint16
	baseSeqPrev uint16
	lastSeq     uint16
	lastTime    time.Time
	seqPaused   bool
	ssrcChanged bool
}

// SwitchingContext normalizes RTP timestamps and sequence numbers for
// one playback job: one independent rewriting context per direction.
//
// Guarantee: per direction, emitted sequence numbers increase by
// exactly 1 per packet and timestamps never move backward, across
// SSRC changes and sequence pauses in the source recording.
type SwitchingContext struct {
	audio streamState
	video streamState

	// now is the monotonic clock source. Injectable for deterministic
	// tests; nil means time.Now.
	now func() time.Time
}

// NewSwitchingContext creates a context using the system clock.
func NewSwitchingContext() *SwitchingContext {
	return &SwitchingContext{now: time.Now}
}

// SetClock replaces the monotonic clock source. Passing nil restores
// the system clock. Intended for tests.
func (c *SwitchingContext) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	c.now = now
}

// PauseSequence marks the direction's numbering as paused: the next
// rewritten packet re-anchors its sequence base to continue from the
// last emitted value, and the timestamp anchor is nudged forward so
// the rewritten timeline keeps advancing after the idle period.
//
// Playback jobs set this for both directions at start, so replayed
// media continues whatever the session emitted before.
func (c *SwitchingContext) PauseSequence(d Direction) {
	c.state(d).seqPaused = true
}

func (c *SwitchingContext) state(d Direction) *streamState {
	if d == DirectionVideo {
		return &c.video
	}
	return &c.audio
}

// clockKHz returns the RTP clock rate for the direction, in kHz.
// Audio defaults to 48 kHz (Opus) unless the payload type is a known
// narrowband codec.
func clockKHz(d Direction, payloadType uint8) int64 {
	if d == DirectionVideo {
		return videoClockKHz
	}
	if payloadType == 0 || payloadType == 8 || payloadType == 9 {
		return narrowbandClockKHz
	}
	return audioClockKHz
}

// Rewrite normalizes the packet's timestamp and sequence number in
// place. pkt must hold a complete RTP packet; the rewritten fields are
// stored back in network byte order.
func (c *SwitchingContext) Rewrite(pkt []byte, d Direction) error {
	var header rtp.Header
	if _, err := header.Unmarshal(pkt); err != nil {
		return fmt.Errorf("parse rtp header: %w", err)
	}
	s := c.state(d)
	now := c.now()

	if header.SSRC != s.lastSSRC {
		logrus.WithFields(logrus.Fields{
			"direction": d.String(),
			"old_ssrc":  s.lastSSRC,
			"new_ssrc":  header.SSRC,
		}).Debug("SSRC changed, re-anchoring rewrite context")
		s.lastSSRC = header.SSRC
		s.baseTSPrev = s.lastTS
		s.baseTS = header.Timestamp
		s.baseSeqPrev = s.lastSeq
		s.baseSeq = header.SequenceNumber
		if !s.lastTime.IsZero() {
			// Advance the anchor by the wall-clock gap since the last
			// packet so the rewritten timeline moves plausibly through
			// it instead of jumping.
			khz := clockKHz(d, header.PayloadType)
			gap := now.Sub(s.lastTime).Microseconds() * khz / 1000
			if gap == 0 {
				gap = 1
			}
			s.baseTSPrev += uint32(gap)
			s.lastTS += uint32(gap)
			logrus.WithFields(logrus.Fields{
				"direction": d.String(),
				"offset":    gap,
			}).Debug("Computed RTP timestamp offset for SSRC switch")
		}
		s.ssrcChanged = true
	}
	if s.seqPaused {
		// Numbering was paused for a while: continue from the last
		// emitted sequence number and push the timestamp anchor ahead.
		s.seqPaused = false
		s.baseSeqPrev = s.lastSeq
		s.baseSeq = header.SequenceNumber
		s.baseTSPrev = s.lastTS + pauseTimestampNudge
	}

	s.lastTS = (header.Timestamp - s.baseTS) + s.baseTSPrev
	s.lastSeq = (header.SequenceNumber - s.baseSeq) + s.baseSeqPrev + 1
	binary.BigEndian.PutUint16(pkt[2:4], s.lastSeq)
	binary.BigEndian.PutUint32(pkt[4:8], s.lastTS)
	s.lastTime = now
	return nil
}
