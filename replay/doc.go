// Package replay plays previously recorded RTP streams back onto live
// sessions, reconstructing the original packet timing from the
// recording's own clock.
//
// # Architecture
//
// The package consists of three cooperating pieces:
//
//   - Manager: session registry and the StartPlaying/StopPlaying
//     control surface exposed to the host.
//   - playout scheduler: one goroutine per playback job pacing two
//     independent sub-streams (audio and video) from their indexed
//     recordings, interleaving them without drift.
//   - rtpctx.SwitchingContext: per-direction rewriting of timestamp and
//     sequence number fields so the receiver sees one coherent stream.
//
// The host side (packet relay, lifecycle notifications, session
// teardown) is injected through the Host interface, so the core runs
// and tests without a live media stack.
//
// # Usage
//
//	manager, err := replay.NewManager(host)
//	if err != nil {
//		return err
//	}
//	manager.RegisterSession(sessionID)
//	result := manager.StartPlaying(sessionID, transaction,
//		audioDir, audioFile, videoDir, videoFile)
//	if result != replay.ResultOK {
//		return result.Err()
//	}
//	// ... later ...
//	manager.StopPlaying(sessionID)
package replay
