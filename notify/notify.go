// Package notify provides lifecycle-notification sinks for playback
// events. Hosts embed the core with their own notification channel;
// these implementations serve the CLI and simple integrations.
package notify

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// LogNotifier writes lifecycle events to the structured log.
type LogNotifier struct{}

// NotifyLifecycle implements the notification half of replay.Host.
func (LogNotifier) NotifyLifecycle(sessionID uint32, transaction string, payload []byte) {
	logrus.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"transaction": transaction,
		"event":       string(payload),
	}).Info("Playback lifecycle event")
}

// envelope is the wire format WebSocketNotifier pushes: the lifecycle
// payload wrapped with its session and transaction identity.
type envelope struct {
	SessionID   uint32          `json:"session_id"`
	Transaction string          `json:"transaction"`
	Event       json.RawMessage `json:"event"`
}

// WebSocketNotifier pushes lifecycle events to a host endpoint over a
// websocket connection. Writes are serialized; the gorilla connection
// does not allow concurrent writers.
type WebSocketNotifier struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialWebSocket connects a notifier to the given ws:// or wss:// URL.
func DialWebSocket(url string) (*WebSocketNotifier, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial event endpoint: %w", err)
	}
	return &WebSocketNotifier{conn: conn}, nil
}

// NotifyLifecycle implements the notification half of replay.Host.
func (n *WebSocketNotifier) NotifyLifecycle(sessionID uint32, transaction string, payload []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.conn.WriteJSON(envelope{
		SessionID:   sessionID,
		Transaction: transaction,
		Event:       json.RawMessage(payload),
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"session_id": sessionID,
		}).WithError(err).Warn("Could not push lifecycle event")
	}
}

// Close closes the websocket connection.
func (n *WebSocketNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conn.Close()
}
