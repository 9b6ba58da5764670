package mjr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// tagSize is the fixed record tag preceding every record.
	tagSize = 8
	// lengthSize is the big-endian payload length following the tag.
	lengthSize = 2
	// minRTPSize is the smallest payload treated as a media packet;
	// shorter records are non-media framing and are skipped.
	minRTPSize = 12
	// legacyTypeLength is the payload length of the legacy dialect's
	// one-time media type declaration record.
	legacyTypeLength = 5
)

// Dialect identifies the container header dialect of a record,
// taken from the second byte of the record tag.
type Dialect byte

const (
	// DialectLegacy marks the old fixed-header format: a one-time
	// 5-byte media type declaration followed by raw RTP records.
	DialectLegacy Dialect = 'E'
	// DialectJSON marks the newer format carrying a one-time
	// length-prefixed JSON info blob.
	DialectJSON Dialect = 'J'
)

// Record is one framed entry of the container: its dialect, declared
// payload length and the payload's absolute file offset.
type Record struct {
	Dialect       Dialect
	Length        uint16
	PayloadOffset int64
}

// Info is the parsed JSON info header of a DialectJSON container.
type Info struct {
	// MediaType is "a" for audio or "v" for video.
	MediaType string `json:"t"`
	// Codec is the codec name the recorder wrote, e.g. "opus" or "vp8".
	Codec string `json:"c"`
	// Created is when the recording was created (microseconds).
	Created int64 `json:"s"`
	// FirstWrite is when the first frame was written (microseconds).
	FirstWrite int64 `json:"u"`
}

// Video reports whether the info header declares a video recording.
func (i *Info) Video() bool {
	return strings.EqualFold(i.MediaType, "v")
}

// ContainerReader provides sequential framed-record access over a
// container file. It yields raw record descriptors only; ordering and
// timestamp reconstruction are the indexer's concern.
type ContainerReader struct {
	file   *os.File
	size   int64
	offset int64
}

// ResolvePath joins dir and filename, appending the ".mjr" extension
// when the filename does not already carry it.
func ResolvePath(dir, filename string) string {
	if strings.Contains(filename, ".mjr") {
		return filepath.Join(dir, filename)
	}
	return filepath.Join(dir, filename+".mjr")
}

// OpenContainer opens the container file at path for framed reading.
func OpenContainer(path string) (*ContainerReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat container: %w", err)
	}
	return &ContainerReader{file: file, size: info.Size()}, nil
}

// Size returns the container file size in bytes.
func (r *ContainerReader) Size() int64 {
	return r.size
}

// Rewind resets the reader to the first record.
func (r *ContainerReader) Rewind() {
	r.offset = 0
}

// Close closes the underlying file.
func (r *ContainerReader) Close() error {
	return r.file.Close()
}

// Next reads the next record header and advances past its payload.
// It returns io.EOF once the container is exhausted and
// ErrMalformedContainer on an unrecognized record tag.
func (r *ContainerReader) Next() (Record, error) {
	if r.offset >= r.size {
		return Record{}, io.EOF
	}
	var header [tagSize + lengthSize]byte
	if _, err := r.file.ReadAt(header[:], r.offset); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Record{}, fmt.Errorf("%w: truncated record header at offset %d", ErrMalformedContainer, r.offset)
		}
		return Record{}, fmt.Errorf("read record header: %w", err)
	}
	if header[0] != 'M' || (header[1] != byte(DialectLegacy) && header[1] != byte(DialectJSON)) {
		return Record{}, fmt.Errorf("%w: invalid record tag %q at offset %d", ErrMalformedContainer, header[:2], r.offset)
	}
	rec := Record{
		Dialect:       Dialect(header[1]),
		Length:        binary.BigEndian.Uint16(header[tagSize:]),
		PayloadOffset: r.offset + tagSize + lengthSize,
	}
	r.offset = rec.PayloadOffset + int64(rec.Length)
	return rec, nil
}

// ReadPayload reads up to len(buf) bytes of the record's payload.
// A short read is reported through the byte count, not an error, so
// callers can decide whether a truncated packet is fatal.
func (r *ContainerReader) ReadPayload(rec Record, buf []byte) (int, error) {
	max := int(rec.Length)
	if len(buf) < max {
		max = len(buf)
	}
	n, err := r.file.ReadAt(buf[:max], rec.PayloadOffset)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	return n, err
}

// ParseInfo validates and decodes a JSON info header payload.
// Every field is required; a missing or mistyped field rejects the
// whole container.
func ParseInfo(payload []byte) (*Info, error) {
	var raw struct {
		MediaType  *string `json:"t"`
		Codec      *string `json:"c"`
		Created    *int64  `json:"s"`
		FirstWrite *int64  `json:"u"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid info header: %v", ErrMalformedContainer, err)
	}
	if raw.MediaType == nil {
		return nil, fmt.Errorf("%w: missing media type in info header", ErrMalformedContainer)
	}
	if !strings.EqualFold(*raw.MediaType, "a") && !strings.EqualFold(*raw.MediaType, "v") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, *raw.MediaType)
	}
	if raw.Codec == nil {
		return nil, fmt.Errorf("%w: missing codec in info header", ErrMalformedContainer)
	}
	if raw.Created == nil {
		return nil, fmt.Errorf("%w: missing created time in info header", ErrMalformedContainer)
	}
	if raw.FirstWrite == nil {
		return nil, fmt.Errorf("%w: missing first write time in info header", ErrMalformedContainer)
	}
	return &Info{
		MediaType:  *raw.MediaType,
		Codec:      *raw.Codec,
		Created:    *raw.Created,
		FirstWrite: *raw.FirstWrite,
	}, nil
}
