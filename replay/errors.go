package replay

import "errors"

// Sentinel errors for replay package operations.
// These errors enable reliable error classification using errors.Is().
var (
	// ErrNilHost indicates no host capability object was provided.
	ErrNilHost = errors.New("host cannot be nil")

	// ErrSessionExists indicates the session ID is already registered.
	ErrSessionExists = errors.New("session already registered")

	// ErrSessionNotFound indicates the session ID is not registered.
	ErrSessionNotFound = errors.New("session not found")

	// ErrWrongArgumentCount indicates a malformed control request.
	ErrWrongArgumentCount = errors.New("wrong number of arguments")

	// ErrInvalidRecording indicates neither the audio nor the video
	// track could be opened and indexed.
	ErrInvalidRecording = errors.New("invalid recording")

	// ErrWorkerStart indicates the playout worker could not be started.
	ErrWorkerStart = errors.New("worker start failure")
)

// Result is the status code a control surface call returns to the
// host. The numeric values are part of the host protocol.
type Result int

const (
	// ResultOK indicates the request was accepted.
	ResultOK Result = 0
	// ResultWrongArgumentCount indicates a malformed request.
	ResultWrongArgumentCount Result = 1000
	// ResultSessionNotFound indicates an unknown or destroyed session.
	ResultSessionNotFound Result = 1001
	// ResultInvalidRecording indicates no playable track was found.
	ResultInvalidRecording Result = 1002
	// ResultWorkerStartFailure indicates the playout worker could not
	// be launched; the session's peer connection is closed.
	ResultWorkerStartFailure Result = 1003
)

// Err maps the result to its sentinel error, or nil for ResultOK.
func (r Result) Err() error {
	switch r {
	case ResultOK:
		return nil
	case ResultWrongArgumentCount:
		return ErrWrongArgumentCount
	case ResultSessionNotFound:
		return ErrSessionNotFound
	case ResultInvalidRecording:
		return ErrInvalidRecording
	case ResultWorkerStartFailure:
		return ErrWorkerStart
	default:
		return errors.New("unknown result")
	}
}

// String returns a human-readable result name for logging.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultWrongArgumentCount:
		return "wrong-argument-count"
	case ResultSessionNotFound:
		return "session-not-found"
	case ResultInvalidRecording:
		return "invalid-recording"
	case ResultWorkerStartFailure:
		return "worker-start-failure"
	default:
		return "unknown"
	}
}
