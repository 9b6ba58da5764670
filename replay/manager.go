package replay

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mediabridge/replaykit/mjr"
)

// Manager owns the session registry and the playback control surface.
//
// The registry mutex only covers lookup, insert and remove; playout
// goroutines coordinate with the control surface through the atomic
// flags on Session and Recording, never through this mutex.
type Manager struct {
	host Host

	mu       sync.Mutex
	sessions map[uint32]*Session

	// timeProvider drives the pacing loop. Defaults to the system
	// clock; injectable for deterministic tests.
	timeProvider TimeProvider

	// startWorker launches the playout goroutine. Hosts with bounded
	// worker pools can replace it; a returned error surfaces as
	// ResultWorkerStartFailure.
	startWorker func(fn func()) error
}

// NewManager creates a playback manager bound to the given host
// capabilities.
func NewManager(host Host) (*Manager, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	return &Manager{
		host:         host,
		sessions:     make(map[uint32]*Session),
		timeProvider: DefaultTimeProvider{},
		startWorker:  defaultStartWorker,
	}, nil
}

func defaultStartWorker(fn func()) error {
	go fn()
	return nil
}

// SetTimeProvider replaces the pacing clock. Passing nil restores the
// system clock. Intended for tests.
func (m *Manager) SetTimeProvider(tp TimeProvider) {
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	m.timeProvider = tp
}

// SetWorkerStarter replaces the goroutine launcher used for playout
// jobs. Passing nil restores the default unbounded launcher.
func (m *Manager) SetWorkerStarter(start func(fn func()) error) {
	if start == nil {
		start = defaultStartWorker
	}
	m.startWorker = start
}

// RegisterSession adds a host session to the registry.
func (m *Manager) RegisterSession(id uint32) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; exists {
		return nil, ErrSessionExists
	}
	session := &Session{id: id}
	m.sessions[id] = session
	return session, nil
}

// UnregisterSession marks the session destroyed and removes it from
// the registry. A running playout job observes the destroyed flag and
// exits on its next iteration.
func (m *Manager) UnregisterSession(id uint32) error {
	m.mu.Lock()
	session, exists := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !exists {
		return ErrSessionNotFound
	}
	session.destroyed.Store(true)
	session.recMu.Lock()
	if session.recording != nil {
		session.recording.Destroy()
	}
	session.recMu.Unlock()
	return nil
}

// Session returns the registered session with the given ID.
func (m *Manager) Session(id uint32) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, exists := m.sessions[id]
	if !exists || session.destroyed.Load() {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// StartPlaying accepts a playback request for the session.
//
// paths carries the recording locations: audioDir, audioFile and
// optionally videoDir, videoFile — exactly 2 or 4 entries. Each track
// is opened and indexed independently; a track that fails to open or
// holds no media is logged and skipped, but at least one playable
// track is required. On success the playout worker is launched and
// exactly one {"play":"start"} lifecycle event precedes any media.
func (m *Manager) StartPlaying(sessionID uint32, transaction string, paths ...string) Result {
	log := logrus.WithFields(logrus.Fields{
		"function":    "StartPlaying",
		"session_id":  sessionID,
		"transaction": transaction,
	})
	log.Info("Start playing")

	if len(paths) != 2 && len(paths) != 4 {
		log.WithFields(logrus.Fields{"arguments": len(paths)}).Error("Wrong number of arguments (expected 2 or 4 paths)")
		return ResultWrongArgumentCount
	}

	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if !exists || session.destroyed.Load() {
		m.mu.Unlock()
		return ResultSessionNotFound
	}
	session.recMu.Lock()
	defer session.recMu.Unlock()
	m.mu.Unlock()

	recording := &Recording{}
	session.recording = recording

	aframes, err := mjr.Build(paths[0], paths[1])
	switch {
	case err != nil:
		log.WithError(err).Warn("Error opening audio recording, trying to go on anyway")
	case aframes.Empty():
		log.Warn("Audio recording holds no media, trying to go on anyway")
	default:
		session.aframes = aframes
		recording.audioDir = paths[0]
		recording.audioFile = paths[1]
	}

	if len(paths) == 4 {
		vframes, err := mjr.Build(paths[2], paths[3])
		switch {
		case err != nil:
			log.WithError(err).Warn("Error opening video recording, trying to go on anyway")
		case vframes.Empty():
			log.Warn("Video recording holds no media, trying to go on anyway")
		default:
			session.vframes = vframes
			recording.videoDir = paths[2]
			recording.videoFile = paths[3]
		}
	}

	if session.aframes == nil && session.vframes == nil {
		log.Error("Error opening recording files")
		session.recording = nil
		return ResultInvalidRecording
	}

	session.active.Store(true)
	session.transaction = transaction

	if err := m.startWorker(func() { m.playoutLoop(session, recording) }); err != nil {
		log.WithError(err).Error("Could not launch playout worker")
		session.active.Store(false)
		session.aframes = nil
		session.vframes = nil
		session.recording = nil
		m.host.CloseSession(sessionID)
		return ResultWorkerStartFailure
	}
	return ResultOK
}

// StopPlaying requests that the session's running playback stop. The
// pacing loop observes the flag within one idle-sleep interval and
// emits a {"play":"stopped"} event on exit.
func (m *Manager) StopPlaying(sessionID uint32) Result {
	logrus.WithFields(logrus.Fields{
		"function":   "StopPlaying",
		"session_id": sessionID,
	}).Info("Stop playing")

	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if !exists || session.destroyed.Load() {
		m.mu.Unlock()
		return ResultSessionNotFound
	}
	session.recMu.Lock()
	defer session.recMu.Unlock()
	m.mu.Unlock()

	if session.recording != nil {
		session.recording.RequestStop()
	}
	return ResultOK
}
