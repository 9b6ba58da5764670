// Package transport provides concrete packet sinks for replayed media.
// The playback core only ever sees the abstract Host capability; these
// implementations exist for the CLI and for hosts without their own
// relay path.
package transport

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/mediabridge/replaykit/replay/rtpctx"
)

// UDPRelay forwards replayed RTP packets to per-direction UDP
// endpoints. A direction without an endpoint is silently dropped, so a
// single relay serves audio-only and video-only playback too.
type UDPRelay struct {
	audio net.Conn
	video net.Conn
}

// NewUDPRelay connects the relay to the given UDP endpoints. Either
// address may be empty to leave that direction unconnected.
func NewUDPRelay(audioAddr, videoAddr string) (*UDPRelay, error) {
	relay := &UDPRelay{}
	if audioAddr != "" {
		conn, err := net.Dial("udp", audioAddr)
		if err != nil {
			return nil, fmt.Errorf("dial audio endpoint: %w", err)
		}
		relay.audio = conn
	}
	if videoAddr != "" {
		conn, err := net.Dial("udp", videoAddr)
		if err != nil {
			if relay.audio != nil {
				relay.audio.Close()
			}
			return nil, fmt.Errorf("dial video endpoint: %w", err)
		}
		relay.video = conn
	}
	return relay, nil
}

// RelayPacket implements the packet half of replay.Host.
func (r *UDPRelay) RelayPacket(sessionID uint32, direction rtpctx.Direction, pkt []byte) {
	conn := r.audio
	if direction == rtpctx.DirectionVideo {
		conn = r.video
	}
	if conn == nil {
		return
	}
	if _, err := conn.Write(pkt); err != nil {
		logrus.WithFields(logrus.Fields{
			"session_id": sessionID,
			"direction":  direction.String(),
		}).WithError(err).Debug("Dropped replayed packet")
	}
}

// Close releases both endpoint connections.
func (r *UDPRelay) Close() error {
	var firstErr error
	if r.audio != nil {
		if err := r.audio.Close(); err != nil {
			firstErr = err
		}
		r.audio = nil
	}
	if r.video != nil {
		if err := r.video.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.video = nil
	}
	return firstErr
}
