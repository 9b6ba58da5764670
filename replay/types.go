package replay

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mediabridge/replaykit/mjr"
	"github.com/mediabridge/replaykit/replay/rtpctx"
)

// Host is the capability surface the playback core consumes from its
// embedding plugin. Modeling it as an interface keeps the core
// testable without a live host runtime.
type Host interface {
	// RelayPacket hands one rewritten RTP packet to the session's
	// media relay. The slice is only valid for the duration of the
	// call.
	RelayPacket(sessionID uint32, direction rtpctx.Direction, pkt []byte)

	// NotifyLifecycle delivers a JSON-encoded lifecycle event for the
	// transaction that started playback.
	NotifyLifecycle(sessionID uint32, transaction string, payload []byte)

	// CloseSession tears the session down after an unrecoverable
	// startup failure.
	CloseSession(sessionID uint32)
}

// Lifecycle event payloads sent through Host.NotifyLifecycle.
const (
	// EventStart is emitted once, after priming and before any media.
	EventStart = "start"
	// EventStopped is emitted when playback ends by external request.
	EventStopped = "stopped"
	// EventEnded is emitted when playback runs out of frames or the
	// session goes away.
	EventEnded = "ended"
)

// lifecyclePayload encodes a playback state change as the host's
// {"play": "<state>"} JSON convention.
func lifecyclePayload(state string) []byte {
	payload, _ := json.Marshal(struct {
		Play string `json:"play"`
	}{Play: state})
	return payload
}

// Recording is the per-job playback unit: the track file locations and
// the flags the control surface uses to signal the playout goroutine.
// Both flags are observed without blocking, once per loop iteration.
type Recording struct {
	audioDir  string
	audioFile string
	videoDir  string
	videoFile string

	stopRequested atomic.Bool
	destroyed     atomic.Bool
}

// RequestStop asks the playout loop to stop before its next send.
// Cancellation never interrupts an in-flight packet.
func (r *Recording) RequestStop() {
	r.stopRequested.Store(true)
}

// Destroy marks the recording as torn down externally.
func (r *Recording) Destroy() {
	r.destroyed.Store(true)
}

// Session mirrors one host session playback can attach to. Sessions
// are created by the host glue and registered with the Manager; the
// core only reads identity and flags from them.
type Session struct {
	id uint32

	// recorder marks a session currently capturing; such a session
	// cannot also play out.
	recorder atomic.Bool

	active    atomic.Bool
	destroyed atomic.Bool

	// recMu guards recording replacement at acquisition time only; the
	// pacing loop never takes it after starting.
	recMu       sync.Mutex
	recording   *Recording
	aframes     *mjr.FrameList
	vframes     *mjr.FrameList
	transaction string
}

// ID returns the host session identifier.
func (s *Session) ID() uint32 {
	return s.id
}

// SetRecorder marks or clears the session's passive recorder role.
func (s *Session) SetRecorder(recorder bool) {
	s.recorder.Store(recorder)
}

// Active reports whether a playback job is currently running.
func (s *Session) Active() bool {
	return s.active.Load()
}

// Destroyed reports whether the session has been torn down.
func (s *Session) Destroyed() bool {
	return s.destroyed.Load()
}

// clearPlayback releases the job's hold on the session's frame lists
// and recording. Called on every playout exit path.
func (s *Session) clearPlayback() {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	s.aframes = nil
	s.vframes = nil
	s.recording = nil
}
