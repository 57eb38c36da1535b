package api

import (
	"net/http"
	"runtime"
	"time"
)

// StatusResponse is the body of the status endpoint.
type StatusResponse struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          *MQTTMetrics   `json:"mqtt,omitempty"`
	Modem         *ModemMetrics  `json:"modem,omitempty"`
	Bridge        *BridgeMetrics `json:"bridge,omitempty"`
	Devices       DeviceMetrics  `json:"devices"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// ModemMetrics contains modem session statistics.
type ModemMetrics struct {
	State           string `json:"state"`
	Target          string `json:"target"`
	MessagesTx      uint64 `json:"messages_tx"`
	MessagesRx      uint64 `json:"messages_rx"`
	MessagesDropped uint64 `json:"messages_dropped"`
	Errors          uint64 `json:"errors"`
	LastActivity    string `json:"last_activity,omitempty"`
}

// BridgeMetrics contains bridge counters.
type BridgeMetrics struct {
	Identified      uint64 `json:"identified"`
	StatusUpdates   uint64 `json:"status_updates"`
	GroupBroadcasts uint64 `json:"group_broadcasts"`
	NewDevices      uint64 `json:"new_devices"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total        int            `json:"total"`
	Unidentified int            `json:"unidentified"`
	ByType       map[string]int `json:"by_type"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := StatusResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
	}

	if s.mqtt != nil {
		resp.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	if s.modem != nil {
		st := s.modem.Stats()
		resp.Modem = &ModemMetrics{
			State:           st.State.String(),
			Target:          st.Target,
			MessagesTx:      st.MessagesTx,
			MessagesRx:      st.MessagesRx,
			MessagesDropped: st.MessagesDropped,
			Errors:          st.ErrorsTotal,
		}
		if !st.LastActivity.IsZero() {
			resp.Modem.LastActivity = st.LastActivity.UTC().Format(time.RFC3339)
		}
	}

	if s.bridge != nil {
		st := s.bridge.Stats()
		resp.Bridge = &BridgeMetrics{
			Identified:      st.Identified,
			StatusUpdates:   st.StatusUpdates,
			GroupBroadcasts: st.GroupBroadcasts,
			NewDevices:      st.NewDevices,
		}
	}

	devices := s.registry.List()
	resp.Devices = DeviceMetrics{Total: len(devices), ByType: make(map[string]int)}
	for _, d := range devices {
		resp.Devices.ByType[d.Type.String()]++
		if !d.Identified() {
			resp.Devices.Unidentified++
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
