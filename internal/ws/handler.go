package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP connections and attaches them to the hub. The
// stream is one-way: clients only listen for simulation events.
type Handler struct {
	hub *Hub
	log *logrus.Entry
}

func NewHandler(hub *Hub, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{hub: hub, log: log.WithField("component", "ws")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.hub.Register(client)
	go client.writePump()
	h.readPump(client)
}

// readPump drains incoming frames until the peer closes so that control
// frames keep being processed. Payloads are ignored.
func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Debug("WebSocket read error")
			}
			return
		}
	}
}

// BroadcastProgress publishes a progress fraction for a run.
func (h *Handler) BroadcastProgress(runID string, fraction float64) {
	msg, err := NewEnvelope(TypeSimProgress, SimProgressPayload{RunID: runID, Fraction: fraction})
	if err != nil {
		return
	}
	h.hub.Broadcast(msg)
}

// BroadcastComplete publishes a finished run's statistics.
func (h *Handler) BroadcastComplete(payload SimCompletePayload) {
	msg, err := NewEnvelope(TypeSimComplete, payload)
	if err != nil {
		return
	}
	h.hub.Broadcast(msg)
}

// BroadcastError publishes a failed run.
func (h *Handler) BroadcastError(runID string, runErr error) {
	msg, err := NewEnvelope(TypeSimError, SimErrorPayload{RunID: runID, Error: runErr.Error()})
	if err != nil {
		return
	}
	h.hub.Broadcast(msg)
}
