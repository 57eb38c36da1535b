package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/insteon-bridge/internal/infrastructure/config"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/logging"
)

// Broadcast channels a client can subscribe to.
const (
	ChannelDeviceStatus = "device.status"
	ChannelDeviceEvent  = "device.event"
)

// Message types on the WebSocket stream.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// WSMessage is the envelope of every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload names the channels of a subscribe or unsubscribe.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// StatusPayload is broadcast on ChannelDeviceStatus.
type StatusPayload struct {
	Address string `json:"address"`
	Group   int    `json:"group"`
	Level   int    `json:"level"`
}

// Hub fans device updates out to WebSocket clients. It is also a
// bridge.StatusSink, so it can be wired before the API server exists;
// with no clients a broadcast costs one map lookup.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
	channels map[string]map[*wsClient]struct{}
}

// NewHub creates a hub. Zero intervals fall back to a 30s ping and a 10s
// pong timeout.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 10
	}
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		clients:  make(map[*wsClient]struct{}),
		channels: make(map[string]map[*wsClient]struct{}),
	}
}

// Run disconnects every client once ctx is done.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.channels = make(map[string]map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// Broadcast sends payload to the clients subscribed to channel. Clients
// whose queue is full miss the message.
func (h *Hub) Broadcast(channel string, payload any) {
	h.mu.RLock()
	n := len(h.channels[channel])
	h.mu.RUnlock()
	if n == 0 {
		return
	}

	data, err := encodeFrame(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
	if err != nil {
		h.logger.Error("encoding broadcast failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		if !c.enqueue(data) {
			h.logger.Debug("websocket client lagging, message dropped", "channel", channel)
		}
	}
}

// WriteDeviceStatus broadcasts a group level on ChannelDeviceStatus.
func (h *Hub) WriteDeviceStatus(address string, group int, level int) {
	h.Broadcast(ChannelDeviceStatus, StatusPayload{Address: address, Group: group, Level: level})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	for name, members := range h.channels {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, name)
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// join subscribes c to names, or unsubscribes it when leave is set.
func (h *Hub) join(c *wsClient, names []string, leave bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	for _, name := range names {
		members := h.channels[name]
		if leave {
			delete(members, c)
			if len(members) == 0 {
				delete(h.channels, name)
			}
			continue
		}
		if members == nil {
			members = make(map[*wsClient]struct{})
			h.channels[name] = members
		}
		members[c] = struct{}{}
	}
}

func encodeFrame(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}
