// Package rtpctx rewrites the timestamp and sequence number fields of
// replayed RTP packets so a downstream receiver sees one continuous,
// monotonic numbering space per direction, regardless of SSRC changes
// or timestamp discontinuities inside the source recording.
//
// It uses the pion/rtp library for standards-compliant RTP header
// parsing; the rewritten fields are written back into the original
// packet bytes in network byte order.
package rtpctx
