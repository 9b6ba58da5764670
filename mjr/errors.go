package mjr

import "errors"

// Sentinel errors for container parsing.
// These errors enable reliable error classification using errors.Is().
var (
	// ErrMalformedContainer indicates a record header, type declaration
	// or JSON info blob failed required-field validation. Fatal to
	// indexing: the whole file is rejected.
	ErrMalformedContainer = errors.New("malformed container")

	// ErrUnsupportedMediaType indicates the container declares a media
	// type other than audio or video.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)
