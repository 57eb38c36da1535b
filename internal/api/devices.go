package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/insteon-bridge/internal/bridge"
	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/modem"
	"github.com/nerrad567/insteon-bridge/internal/platform"
)

// commandTimeout bounds one level command, including retries by the modem.
const commandTimeout = 10 * time.Second

// DeviceView is a device with the platforms it is exposed under.
type DeviceView struct {
	*device.Device
	Platforms []platform.Category `json:"platforms"`
}

// SetLevelRequest is the body of a level command.
type SetLevelRequest struct {
	Level *int `json:"level"`
}

func newDeviceView(d *device.Device) DeviceView {
	return DeviceView{Device: d, Platforms: platform.ForDevice(d)}
}

// handleListDevices returns all devices, sorted by address.
//
// Query parameters:
//   - platform: only devices exposed under this category
//   - identified: "true" or "false" to filter on a known type
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var identified *bool
	if v := q.Get("identified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "identified must be true or false")
			return
		}
		identified = &b
	}
	category := platform.Category(q.Get("platform"))

	views := make([]DeviceView, 0, s.registry.Count())
	for _, d := range s.registry.List() {
		if category != "" && !platform.Has(d.Type, category) {
			continue
		}
		if identified != nil && d.Identified() != *identified {
			continue
		}
		views = append(views, newDeviceView(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns one device. The address may be given in any
// form ParseAddress accepts.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	addr, err := device.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	d, err := s.registry.Get(addr)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, newDeviceView(d))
}

// handleSetLevel drives a device group to the requested level.
func (s *Server) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		writeUnavailable(w, "commands are not available")
		return
	}

	addr, err := device.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	group, err := strconv.Atoi(chi.URLParam(r, "group"))
	if err != nil || group < 1 {
		writeBadRequest(w, "group must be a positive number")
		return
	}

	var req SetLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Level == nil || *req.Level < 0 || *req.Level > 0xFF {
		writeBadRequest(w, "level must be between 0 and 255")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	err = s.controller.SetLevel(ctx, addr, group, *req.Level)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"address": addr,
			"group":   group,
			"level":   *req.Level,
		})
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, bridge.ErrUnsupportedGroup), errors.Is(err, device.ErrInvalidAddress):
		writeBadRequest(w, err.Error())
	case errors.Is(err, modem.ErrNotConnected):
		writeUnavailable(w, "modem is not connected")
	default:
		s.logger.Error("level command failed", "address", addr, "group", group, "error", err)
		writeInternalError(w, "command failed")
	}
}

// handleListPlatforms maps every entity category in use to the addresses
// of the devices it covers.
func (s *Server) handleListPlatforms(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.List()
	out := make(map[platform.Category][]device.Address)
	for _, c := range platform.Union(devices) {
		if !c.IsEntity() {
			continue
		}
		for _, d := range devices {
			if platform.Has(d.Type, c) {
				out[c] = append(out[c], d.Address)
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"platforms": out})
}
