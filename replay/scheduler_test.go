package replay

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabridge/replaykit/replay/rtpctx"
)

// TestPlayoutRewritesNumbering verifies relayed packets carry the
// normalized numbering: sequence numbers advancing by exactly one and
// timestamps never going backwards, regardless of the stored values.
func TestPlayoutRewritesNumbering(t *testing.T) {
	manager, host, _ := newTestManager(t)
	manager.RegisterSession(1)
	dir, name := writeRecording(t, "a", audioFrames(8))

	require.Equal(t, ResultOK, manager.StartPlaying(1, "tr", dir, name))
	require.Equal(t, EventStart, host.awaitEvent(t))
	require.Equal(t, EventEnded, host.awaitEvent(t))

	packets := host.relayed()
	require.Len(t, packets, 8)
	for i, pkt := range packets {
		seq := binary.BigEndian.Uint16(pkt.data[2:4])
		assert.Equal(t, uint16(i+1), seq)
		if i > 0 {
			previous := binary.BigEndian.Uint32(packets[i-1].data[4:8])
			current := binary.BigEndian.Uint32(pkt.data[4:8])
			assert.GreaterOrEqual(t, current, previous)
		}
	}
}

// TestPlayoutPreservesPacing verifies the loop spaces packets by the
// recorded timestamp deltas on the clock it is given: five 20ms audio
// frames must span on the order of 80ms of virtual time, not zero.
func TestPlayoutPreservesPacing(t *testing.T) {
	manager, host, clock := newTestManager(t)
	manager.RegisterSession(1)
	dir, name := writeRecording(t, "a", audioFrames(5))

	started := clock.Now()
	require.Equal(t, ResultOK, manager.StartPlaying(1, "tr", dir, name))
	require.Equal(t, EventStart, host.awaitEvent(t))
	require.Equal(t, EventEnded, host.awaitEvent(t))

	elapsed := clock.Now().Sub(started)
	// Four inter-frame gaps of 20ms, each shortened by the 5ms send
	// lookahead at most.
	assert.GreaterOrEqual(t, elapsed, 4*(20*time.Millisecond-5*time.Millisecond))
	assert.Less(t, elapsed, 200*time.Millisecond)
}

// TestPlayoutVideoBurst verifies that video frames sharing one
// timestamp (one encoded frame split across packets) go out
// back-to-back in a single round instead of one per pacing interval.
func TestPlayoutVideoBurst(t *testing.T) {
	manager, host, _ := newTestManager(t)
	manager.RegisterSession(1)

	adir, aname := writeRecording(t, "a", audioFrames(1))
	vdir, vname := writeRecording(t, "v", []frameSpec{
		{seq: 1, ts: 0, ssrc: 0xb0b0},
		{seq: 2, ts: 0, ssrc: 0xb0b0},
		{seq: 3, ts: 0, ssrc: 0xb0b0},
		{seq: 4, ts: 3000, ssrc: 0xb0b0},
		{seq: 5, ts: 3000, ssrc: 0xb0b0},
	})

	require.Equal(t, ResultOK, manager.StartPlaying(1, "tr", adir, aname, vdir, vname))
	require.Equal(t, EventStart, host.awaitEvent(t))
	require.Equal(t, EventEnded, host.awaitEvent(t))

	videoCount := 0
	for _, pkt := range host.relayed() {
		if pkt.direction == rtpctx.DirectionVideo {
			videoCount++
		}
	}
	assert.Equal(t, 5, videoCount)

	// The three packets of the first frame must be adjacent in the
	// call log: nothing paced may be interleaved inside a burst.
	log := host.callLog()
	first := -1
	for i, entry := range log {
		if entry == "packet:video" {
			first = i
			break
		}
	}
	require.NotEqual(t, -1, first)
	require.Greater(t, len(log), first+2)
	assert.Equal(t, "packet:video", log[first+1])
	assert.Equal(t, "packet:video", log[first+2])
}

// TestPlayoutInterleavesTracks verifies audio and video pace
// independently within one job and both reach the sink in full.
func TestPlayoutInterleavesTracks(t *testing.T) {
	manager, host, _ := newTestManager(t)
	manager.RegisterSession(1)

	adir, aname := writeRecording(t, "a", audioFrames(4))
	vdir, vname := writeRecording(t, "v", []frameSpec{
		{seq: 10, ts: 0, ssrc: 0xb0b0},
		{seq: 11, ts: 2970, ssrc: 0xb0b0},
		{seq: 12, ts: 5940, ssrc: 0xb0b0},
	})

	require.Equal(t, ResultOK, manager.StartPlaying(1, "tr", adir, aname, vdir, vname))
	require.Equal(t, EventStart, host.awaitEvent(t))
	require.Equal(t, EventEnded, host.awaitEvent(t))

	counts := map[rtpctx.Direction]int{}
	for _, pkt := range host.relayed() {
		counts[pkt.direction]++
	}
	assert.Equal(t, 4, counts[rtpctx.DirectionAudio])
	assert.Equal(t, 3, counts[rtpctx.DirectionVideo])
}

// TestPlayoutShortRead verifies a truncated final record still plays:
// the bytes that are there get relayed instead of aborting the job.
func TestPlayoutShortRead(t *testing.T) {
	manager, host, _ := newTestManager(t)
	manager.RegisterSession(1)

	full := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    111,
			SequenceNumber: 1,
			Timestamp:      0,
			SSRC:           0xa0a0,
		},
		Payload: []byte{0xca, 0xfe},
	}
	fullData, err := full.Marshal()
	require.NoError(t, err)

	truncated := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    111,
			SequenceNumber: 2,
			Timestamp:      960,
			SSRC:           0xa0a0,
		},
		Payload: []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04},
	}
	truncatedData, err := truncated.Marshal()
	require.NoError(t, err)
	require.Len(t, truncatedData, 20)

	var buf bytes.Buffer
	appendContainerRecord(&buf, "MJR00002", []byte(`{"t":"a","c":"test","s":1,"u":2}`))
	appendContainerRecord(&buf, "MEETECHO", fullData)
	// Final record lies about its length: 100 bytes declared, 20 on
	// disk. The file ends mid-payload, as after a recorder crash.
	buf.WriteString("MEETECHO")
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], 100)
	buf.Write(length[:])
	buf.Write(truncatedData)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cut.mjr"), buf.Bytes(), 0o644))

	require.Equal(t, ResultOK, manager.StartPlaying(1, "tr", dir, "cut.mjr"))
	require.Equal(t, EventStart, host.awaitEvent(t))
	require.Equal(t, EventEnded, host.awaitEvent(t))

	packets := host.relayed()
	require.Len(t, packets, 2)
	assert.Len(t, packets[0].data, len(fullData))
	assert.Len(t, packets[1].data, len(truncatedData))
	assert.Equal(t, uint16(2), binary.BigEndian.Uint16(packets[1].data[2:4]))
}
