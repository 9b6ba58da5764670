package mjr

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

const (
	// resetJumpThreshold separates a genuine 32-bit timestamp
	// wraparound from ordinary packet reordering: only a backward jump
	// wider than this counts as a reset.
	resetJumpThreshold = 2 * 1000 * 1000 * 1000
	// baselineSlack is subtracted from the first observed timestamp to
	// form the pre/post-reset baseline reference.
	baselineSlack = 1000 * 1000
	// rtpPeekSize is how much of each packet the indexer reads: enough
	// for the fixed RTP header fields it needs.
	rtpPeekSize = 16
)

// resetState tracks timestamp wraparound detection across pass 1 and
// resolves 64-bit adjusted timestamps in pass 2.
type resetState struct {
	firstTS uint32
	lastTS  uint32
	reset   uint32
}

// observe feeds one raw 32-bit timestamp to the reset detector, in
// container order.
func (s *resetState) observe(ts uint32) {
	if s.lastTS == 0 {
		s.firstTS = ts
		if s.firstTS > baselineSlack {
			// Keep a little headroom so packets captured just before
			// the baseline still classify as pre-reset.
			s.firstTS -= baselineSlack
		}
	} else if ts < s.lastTS {
		if s.lastTS-ts > resetJumpThreshold {
			logrus.WithFields(logrus.Fields{
				"timestamp": ts,
			}).Debug("Timestamp reset detected")
			s.reset = ts
		}
	} else if ts < s.reset {
		logrus.WithFields(logrus.Fields{
			"timestamp": ts,
			"previous":  s.reset,
		}).Debug("Updating timestamp reset point")
		s.reset = ts
	}
	s.lastTS = ts
}

// adjust maps a raw 32-bit timestamp onto the reconstructed 64-bit
// timeline: post-reset packets gain a full 32-bit wrap.
func (s *resetState) adjust(ts uint32) uint64 {
	if s.reset == 0 {
		return uint64(ts)
	}
	if ts > s.firstTS {
		// Pre-reset.
		return uint64(ts)
	}
	return uint64(ts) + (uint64(1) << 32)
}

// Build indexes the recording at dir/filename and returns its frames
// ordered by adjusted timestamp.
//
// The scan runs twice: pass 1 walks every record header to detect a
// timestamp reset, pass 2 materializes frame descriptors and inserts
// them in order. Header validation failures abort indexing with
// ErrMalformedContainer; an open or read failure surfaces the I/O
// error. A container with a valid header but zero decodable media
// records yields an empty, non-nil list.
func Build(dir, filename string) (*FrameList, error) {
	path := ResolvePath(dir, filename)
	reader, err := OpenContainer(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	log := logrus.WithFields(logrus.Fields{"path": path})
	log.WithFields(logrus.Fields{"size": reader.Size()}).Debug("Pre-parsing recording to generate ordered index")

	// Pass 1: look for timestamp resets.
	var state resetState
	parsedHeader := false
	var peek [rtpPeekSize]byte
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		media, err := consumeHeader(reader, rec, &parsedHeader)
		if err != nil {
			return nil, err
		}
		if !media {
			continue
		}
		n, err := reader.ReadPayload(rec, peek[:])
		if err != nil {
			return nil, fmt.Errorf("read rtp header: %w", err)
		}
		if n < minRTPSize {
			continue
		}
		state.observe(binary.BigEndian.Uint32(peek[4:8]))
	}

	// Pass 2: build the ordered index.
	reader.Rewind()
	list := &FrameList{}
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rec.Dialect == DialectJSON || rec.Length < minRTPSize {
			continue
		}
		n, err := reader.ReadPayload(rec, peek[:])
		if err != nil {
			return nil, fmt.Errorf("read rtp header: %w", err)
		}
		if n < minRTPSize {
			log.WithFields(logrus.Fields{"offset": rec.PayloadOffset}).Warn("Error reading RTP header, stopping here")
			break
		}
		list.Insert(Frame{
			Seq:       binary.BigEndian.Uint16(peek[2:4]),
			Timestamp: state.adjust(binary.BigEndian.Uint32(peek[4:8])),
			Length:    rec.Length,
			Offset:    rec.PayloadOffset,
		})
	}

	log.WithFields(logrus.Fields{"frames": list.Len()}).Debug("Recording indexed")
	return list, nil
}

// consumeHeader validates one-time header records and reports whether
// rec is a media packet the caller should sample. The first qualifying
// record of each dialect carries the container header: a 5-byte media
// type declaration (legacy) or a JSON info blob.
func consumeHeader(reader *ContainerReader, rec Record, parsed *bool) (bool, error) {
	switch rec.Dialect {
	case DialectLegacy:
		if rec.Length == legacyTypeLength && !*parsed {
			buf := make([]byte, legacyTypeLength)
			if _, err := reader.ReadPayload(rec, buf); err != nil {
				return false, fmt.Errorf("read type declaration: %w", err)
			}
			switch buf[0] {
			case 'v':
				logrus.Debug("Old container header format: video recording, assuming VP8")
			case 'a':
				logrus.Debug("Old container header format: audio recording, assuming Opus")
			default:
				return false, fmt.Errorf("%w: type declaration %q", ErrUnsupportedMediaType, buf[0])
			}
			*parsed = true
			return false, nil
		}
		if rec.Length < minRTPSize {
			// Not RTP, skip.
			return false, nil
		}
		return true, nil
	case DialectJSON:
		if rec.Length > 0 && !*parsed {
			buf := make([]byte, rec.Length)
			n, err := reader.ReadPayload(rec, buf)
			if err != nil {
				return false, fmt.Errorf("read info header: %w", err)
			}
			info, err := ParseInfo(buf[:n])
			if err != nil {
				return false, err
			}
			*parsed = true
			logrus.WithFields(logrus.Fields{
				"media_type":  info.MediaType,
				"codec":       info.Codec,
				"created":     info.Created,
				"first_write": info.FirstWrite,
			}).Debug("Parsed recording info header")
		}
		// JSON records never carry media.
		return false, nil
	}
	return false, nil
}

// ReadInfo returns the recording's info header without indexing it.
// Legacy containers carry no codec metadata, so the legacy media type
// declaration is mapped to the codecs that format implied.
func ReadInfo(path string) (*Info, error) {
	reader, err := OpenContainer(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: no header record found", ErrMalformedContainer)
		}
		if err != nil {
			return nil, err
		}
		switch rec.Dialect {
		case DialectJSON:
			if rec.Length == 0 {
				continue
			}
			buf := make([]byte, rec.Length)
			n, err := reader.ReadPayload(rec, buf)
			if err != nil {
				return nil, fmt.Errorf("read info header: %w", err)
			}
			return ParseInfo(buf[:n])
		case DialectLegacy:
			if rec.Length != legacyTypeLength {
				return nil, fmt.Errorf("%w: no header record found", ErrMalformedContainer)
			}
			buf := make([]byte, legacyTypeLength)
			if _, err := reader.ReadPayload(rec, buf); err != nil {
				return nil, fmt.Errorf("read type declaration: %w", err)
			}
			switch buf[0] {
			case 'v':
				return &Info{MediaType: "v", Codec: "vp8"}, nil
			case 'a':
				return &Info{MediaType: "a", Codec: "opus"}, nil
			default:
				return nil, fmt.Errorf("%w: type declaration %q", ErrUnsupportedMediaType, buf[0])
			}
		}
	}
}
