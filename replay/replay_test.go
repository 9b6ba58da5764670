package replay

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"github.com/mediabridge/replaykit/replay/rtpctx"
)

// mockHost records every capability call the playback core makes, in
// order, so tests can assert on sequencing as well as content.
type mockHost struct {
	mu      sync.Mutex
	packets []relayedPacket
	events  []string
	closed  []uint32
	log     []string

	eventCh chan string
}

type relayedPacket struct {
	direction rtpctx.Direction
	data      []byte
}

func newMockHost() *mockHost {
	return &mockHost{eventCh: make(chan string, 16)}
}

func (h *mockHost) RelayPacket(sessionID uint32, direction rtpctx.Direction, pkt []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data := make([]byte, len(pkt))
	copy(data, pkt)
	h.packets = append(h.packets, relayedPacket{direction: direction, data: data})
	h.log = append(h.log, "packet:"+direction.String())
}

func (h *mockHost) NotifyLifecycle(sessionID uint32, transaction string, payload []byte) {
	var event struct {
		Play string `json:"play"`
	}
	_ = json.Unmarshal(payload, &event)
	h.mu.Lock()
	h.events = append(h.events, event.Play)
	h.log = append(h.log, "event:"+event.Play)
	h.mu.Unlock()
	h.eventCh <- event.Play
}

func (h *mockHost) CloseSession(sessionID uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, sessionID)
}

// awaitEvent blocks until the host receives a lifecycle event.
func (h *mockHost) awaitEvent(t *testing.T) string {
	t.Helper()
	select {
	case event := <-h.eventCh:
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for lifecycle event")
		return ""
	}
}

func (h *mockHost) relayed() []relayedPacket {
	h.mu.Lock()
	defer h.mu.Unlock()
	packets := make([]relayedPacket, len(h.packets))
	copy(packets, h.packets)
	return packets
}

func (h *mockHost) callLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	log := make([]string, len(h.log))
	copy(log, h.log)
	return log
}

// fakeTime is a virtual clock: Sleep advances time instead of waiting,
// so paced playout runs deterministically and fast.
type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Unix(1700000000, 0)}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Sleep(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// frameSpec describes one packet of a synthetic recording.
type frameSpec struct {
	seq  uint16
	ts   uint32
	ssrc uint32
}

func appendContainerRecord(buf *bytes.Buffer, tag string, payload []byte) {
	buf.WriteString(tag)
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(payload)))
	buf.Write(length[:])
	buf.Write(payload)
}

// writeRecording writes a JSON-dialect container holding the given
// frames and returns its directory and filename.
func writeRecording(t *testing.T, mediaType string, frames []frameSpec) (string, string) {
	t.Helper()
	var buf bytes.Buffer
	appendContainerRecord(&buf, "MJR00002",
		[]byte(`{"t":"`+mediaType+`","c":"test","s":1,"u":2}`))
	for _, f := range frames {
		packet := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    111,
				SequenceNumber: f.seq,
				Timestamp:      f.ts,
				SSRC:           f.ssrc,
			},
			Payload: []byte{0xca, 0xfe},
		}
		data, err := packet.Marshal()
		require.NoError(t, err)
		appendContainerRecord(&buf, "MEETECHO", data)
	}
	dir := t.TempDir()
	name := mediaType + ".mjr"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
	return dir, name
}

// audioFrames builds n frames spaced one 20ms Opus frame apart.
func audioFrames(n int) []frameSpec {
	frames := make([]frameSpec, n)
	for i := range frames {
		frames[i] = frameSpec{seq: uint16(i + 1), ts: uint32(960 * i), ssrc: 0xa0a0}
	}
	return frames
}

// newTestManager wires a manager to a mock host and a virtual clock.
func newTestManager(t *testing.T) (*Manager, *mockHost, *fakeTime) {
	t.Helper()
	host := newMockHost()
	manager, err := NewManager(host)
	require.NoError(t, err)
	clock := newFakeTime()
	manager.SetTimeProvider(clock)
	return manager, host, clock
}
