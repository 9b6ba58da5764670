package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mediabridge/replaykit/notify"
	"github.com/mediabridge/replaykit/replay"
	"github.com/mediabridge/replaykit/replay/rtpctx"
	"github.com/mediabridge/replaykit/transport"
)

var (
	playAudioPath   string
	playVideoPath   string
	playAudioAddr   string
	playVideoAddr   string
	playEventsURL   string
	playSessionID   uint32
	playTransaction string
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Replay a recording to UDP endpoints",
	Long: `Replay a recorded session to UDP endpoints. An audio container is
required; a video container is optional and is paced independently.
Lifecycle events ({"play":"start"/"stopped"/"ended"}) are logged and,
when --events-url is set, pushed over a websocket.`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playAudioPath, "audio", "", "audio container path (required)")
	playCmd.Flags().StringVar(&playVideoPath, "video", "", "video container path")
	playCmd.Flags().StringVar(&playAudioAddr, "audio-addr", "127.0.0.1:5002", "audio RTP destination")
	playCmd.Flags().StringVar(&playVideoAddr, "video-addr", "127.0.0.1:5004", "video RTP destination")
	playCmd.Flags().StringVar(&playEventsURL, "events-url", "", "websocket endpoint for lifecycle events")
	playCmd.Flags().Uint32Var(&playSessionID, "session", 1, "session identifier")
	playCmd.Flags().StringVar(&playTransaction, "transaction", "", "transaction identifier (default: random)")
	playCmd.MarkFlagRequired("audio")
}

// playbackHost adapts the CLI's sinks to the replay.Host capability.
type playbackHost struct {
	relay    *transport.UDPRelay
	notifier *notify.WebSocketNotifier // optional
	log      notify.LogNotifier
	done     chan string
}

func (h *playbackHost) RelayPacket(sessionID uint32, direction rtpctx.Direction, pkt []byte) {
	h.relay.RelayPacket(sessionID, direction, pkt)
}

func (h *playbackHost) NotifyLifecycle(sessionID uint32, transaction string, payload []byte) {
	h.log.NotifyLifecycle(sessionID, transaction, payload)
	if h.notifier != nil {
		h.notifier.NotifyLifecycle(sessionID, transaction, payload)
	}
	var event struct {
		Play string `json:"play"`
	}
	if err := json.Unmarshal(payload, &event); err == nil && event.Play != replay.EventStart {
		select {
		case h.done <- event.Play:
		default:
		}
	}
}

func (h *playbackHost) CloseSession(sessionID uint32) {
	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
	}).Error("Host asked to close session after unrecoverable failure")
	select {
	case h.done <- "closed":
	default:
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	relay, err := transport.NewUDPRelay(playAudioAddr, playVideoAddr)
	if err != nil {
		return err
	}
	defer relay.Close()

	host := &playbackHost{relay: relay, done: make(chan string, 1)}
	if playEventsURL != "" {
		notifier, err := notify.DialWebSocket(playEventsURL)
		if err != nil {
			return err
		}
		defer notifier.Close()
		host.notifier = notifier
	}

	manager, err := replay.NewManager(host)
	if err != nil {
		return err
	}
	if _, err := manager.RegisterSession(playSessionID); err != nil {
		return err
	}

	transaction := playTransaction
	if transaction == "" {
		transaction = uuid.NewString()
	}

	paths := []string{filepath.Dir(playAudioPath), filepath.Base(playAudioPath)}
	if playVideoPath != "" {
		paths = append(paths, filepath.Dir(playVideoPath), filepath.Base(playVideoPath))
	}

	if result := manager.StartPlaying(playSessionID, transaction, paths...); result != replay.ResultOK {
		return fmt.Errorf("start playing: %w", result.Err())
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	for {
		select {
		case <-stop:
			manager.StopPlaying(playSessionID)
		case event := <-host.done:
			logrus.WithFields(logrus.Fields{"event": event}).Info("Playback finished")
			return nil
		}
	}
}
