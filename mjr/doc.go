// Package mjr reads .mjr-style media containers: framed recordings where
// each record is either a one-time header (legacy fixed header or JSON
// info blob) or a raw RTP packet.
//
// The package provides two layers:
//
//   - ContainerReader: low-level framed-record access with dialect
//     detection, no ordering logic.
//   - Build: a two-pass indexer that detects 32-bit RTP timestamp
//     wraparound and produces a FrameList ordered by 64-bit adjusted
//     timestamp, ready for paced playout.
//
// Recordings may contain a mid-stream timestamp reset (the capturing
// source wrapped its 32-bit RTP clock). The indexer reconstructs a
// monotonic 64-bit timeline so that pre- and post-reset packets compare
// correctly.
package mjr
