package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const sendQueueSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API listens on localhost only.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsClient is one connection. Frames reach the socket only through the
// write loop; closing done stops it.
type wsClient struct {
	hub   *Hub
	conn  *websocket.Conn
	queue chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// inbound is a client frame with its payload left undecoded.
type inbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:   s.hub,
		conn:  conn,
		queue: make(chan []byte, sendQueueSize),
		done:  make(chan struct{}),
	}
	s.hub.add(c)

	go c.writeLoop()
	go c.readLoop()
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue reports false when the frame was dropped.
func (c *wsClient) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) readLoop() {
	defer c.hub.remove(c)

	cfg := c.hub.cfg
	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	extend() //nolint:errcheck // A failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		extend() //nolint:errcheck // As above
		c.dispatch(data)
	}
}

func (c *wsClient) writeLoop() {
	cfg := c.hub.cfg
	wait := time.Duration(cfg.PongTimeout) * time.Second
	ping := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		if err := c.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
			return err
		}
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-c.done:
			write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")) //nolint:errcheck // Closing anyway
			return
		case data := <-c.queue:
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ping.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func (c *wsClient) dispatch(data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply("", WSTypeError, errorBody("invalid JSON message"))
		return
	}

	switch in.Type {
	case WSTypePing:
		c.reply(in.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if len(in.Payload) == 0 || json.Unmarshal(in.Payload, &sub) != nil {
			c.reply(in.ID, WSTypeError, errorBody("invalid "+in.Type+" payload"))
			return
		}
		leave := in.Type == WSTypeUnsubscribe
		c.hub.join(c, sub.Channels, leave)

		key := "subscribed"
		if leave {
			key = "unsubscribed"
		}
		c.reply(in.ID, WSTypeResponse, map[string][]string{key: sub.Channels})
	default:
		c.reply(in.ID, WSTypeError, errorBody("unknown message type: "+in.Type))
	}
}

func (c *wsClient) reply(id, kind string, payload any) {
	data, err := encodeFrame(WSMessage{Type: kind, ID: id, Payload: payload})
	if err != nil {
		return
	}
	c.enqueue(data)
}

func errorBody(msg string) map[string]string { return map[string]string{"message": msg} }
