package replay

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mediabridge/replaykit/mjr"
	"github.com/mediabridge/replaykit/replay/rtpctx"
)

const (
	// idleSleep bounds busy-polling when neither track was due this
	// round, while preserving sub-10ms pacing resolution. It is also
	// the worst-case latency for observing a stop request.
	idleSleep = 5 * time.Millisecond
	// sendSlack is subtracted from each inter-packet delta before the
	// due check, a small lookahead against chronic under-sending.
	sendSlack = 5_000 // microseconds
	// maxPacketSize bounds a stored RTP packet.
	maxPacketSize = 1500

	audioClockKHz = 48
	videoClockKHz = 90
)

// track is one independently paced cursor over an indexed recording.
type track struct {
	frames *mjr.FrameList
	file   *os.File
	idx    int
	// ref is the track's wall-clock reference instant, advanced by the
	// timestamp delta on each send (never by observed elapsed time, to
	// keep drift from accumulating).
	ref time.Time
	// khz converts timestamp deltas to wall-clock microseconds.
	khz int64
	// burst sends every frame sharing the head timestamp back-to-back
	// before advancing the reference time. Video encoders fragment one
	// frame into several packets with a single timestamp.
	burst     bool
	direction rtpctx.Direction
}

// pending reports whether the cursor still has frames to send.
func (t *track) pending() bool {
	return t.frames != nil && t.idx < t.frames.Len()
}

// openTrack opens the container file behind a non-empty frame list.
// A nil list yields an inactive track.
func openTrack(frames *mjr.FrameList, dir, file string, khz int64, burst bool, direction rtpctx.Direction) *track {
	t := &track{khz: khz, burst: burst, direction: direction}
	if frames == nil {
		return t
	}
	path := mjr.ResolvePath(dir, file)
	f, err := os.Open(path)
	if err != nil {
		// Fatal to this track only; the other may still play.
		logrus.WithFields(logrus.Fields{
			"direction": direction.String(),
			"path":      path,
		}).WithError(err).Error("Could not open recording for playout, dropping track")
		return t
	}
	t.frames = frames
	t.file = f
	return t
}

// close releases the track's file handle.
func (t *track) close() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}

// playoutLoop is the per-job pacing loop. It runs on its own
// goroutine, owns both track cursors, and exits when the frames run
// out, a stop is requested, or the session or recording is torn down.
func (m *Manager) playoutLoop(session *Session, recording *Recording) {
	log := logrus.WithFields(logrus.Fields{
		"session_id":  session.id,
		"transaction": session.transaction,
	})

	if session.recorder.Load() {
		log.Error("This session is a recorder, can't start playout")
		session.clearPlayback()
		session.active.Store(false)
		m.host.NotifyLifecycle(session.id, session.transaction, lifecyclePayload(EventEnded))
		return
	}

	audio := openTrack(session.aframes, recording.audioDir, recording.audioFile,
		audioClockKHz, false, rtpctx.DirectionAudio)
	video := openTrack(session.vframes, recording.videoDir, recording.videoFile,
		videoClockKHz, true, rtpctx.DirectionVideo)
	defer audio.close()
	defer video.close()

	if !audio.pending() && !video.pending() {
		log.Error("No audio and no video frames, can't start playout")
		session.clearPlayback()
		session.active.Store(false)
		m.host.NotifyLifecycle(session.id, session.transaction, lifecyclePayload(EventEnded))
		return
	}

	// One normalizer context per job. Both directions start paused so
	// the replayed numbering continues from whatever the session last
	// emitted.
	ctx := rtpctx.NewSwitchingContext()
	ctx.SetClock(m.timeProvider.Now)
	ctx.PauseSequence(rtpctx.DirectionAudio)
	ctx.PauseSequence(rtpctx.DirectionVideo)

	log.Info("Entering playout loop")
	m.host.NotifyLifecycle(session.id, session.transaction, lifecyclePayload(EventStart))

	buf := make([]byte, maxPacketSize)
	for !session.destroyed.Load() && session.active.Load() &&
		!recording.destroyed.Load() && !recording.stopRequested.Load() &&
		(audio.pending() || video.pending()) {
		asent := m.emitDue(session, audio, ctx, buf)
		vsent := m.emitDue(session, video, ctx, buf)
		if !asent && !vsent {
			// Both tracks skipped this round.
			m.timeProvider.Sleep(idleSleep)
		}
	}

	event := EventEnded
	if recording.stopRequested.Load() {
		event = EventStopped
	}
	m.host.NotifyLifecycle(session.id, session.transaction, lifecyclePayload(event))

	session.clearPlayback()
	session.active.Store(false)
	log.WithFields(logrus.Fields{"event": event}).Info("Leaving playout loop")
}

// emitDue sends the track's next frame if it is due, and reports
// whether anything was sent this round.
func (m *Manager) emitDue(session *Session, t *track, ctx *rtpctx.SwitchingContext, buf []byte) bool {
	if !t.pending() {
		return false
	}
	if t.idx == 0 {
		// First frame: send immediately and anchor the reference time.
		m.emitHead(session, t, ctx, buf)
		t.ref = m.timeProvider.Now()
		return true
	}

	current := t.frames.At(t.idx)
	previous := t.frames.At(t.idx - 1)
	deltaUS := int64(current.Timestamp-previous.Timestamp) * 1000 / t.khz
	passed := m.timeProvider.Now().Sub(t.ref).Microseconds()
	if passed < deltaUS-sendSlack {
		return false
	}
	t.ref = t.ref.Add(time.Duration(deltaUS) * time.Microsecond)
	m.emitHead(session, t, ctx, buf)
	return true
}

// emitHead sends the frame under the cursor, plus — for burst tracks —
// every following frame sharing its timestamp.
func (m *Manager) emitHead(session *Session, t *track, ctx *rtpctx.SwitchingContext, buf []byte) {
	head := t.frames.At(t.idx)
	m.sendFrame(session, t, ctx, buf, head)
	t.idx++
	if !t.burst {
		return
	}
	for t.pending() && t.frames.At(t.idx).Timestamp == head.Timestamp {
		m.sendFrame(session, t, ctx, buf, t.frames.At(t.idx))
		t.idx++
	}
}

// sendFrame reads one stored packet, normalizes its RTP header and
// relays it. A short read is logged and the packet plays degraded;
// replaying a damaged recording beats aborting a live session.
func (m *Manager) sendFrame(session *Session, t *track, ctx *rtpctx.SwitchingContext, buf []byte, frame mjr.Frame) {
	n, err := t.file.ReadAt(buf[:frame.Length], frame.Offset)
	if n < int(frame.Length) {
		logrus.WithFields(logrus.Fields{
			"session_id": session.id,
			"direction":  t.direction.String(),
			"read":       n,
			"expected":   frame.Length,
		}).WithError(err).Warn("Didn't manage to read all the bytes we needed")
	}
	if n == 0 {
		return
	}
	if err := ctx.Rewrite(buf[:n], t.direction); err != nil {
		logrus.WithFields(logrus.Fields{
			"session_id": session.id,
			"direction":  t.direction.String(),
		}).WithError(err).Warn("Could not rewrite RTP header, relaying packet as stored")
	}
	m.host.RelayPacket(session.id, t.direction, buf[:n])
}
