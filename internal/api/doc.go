// Package api implements the admin HTTP API and live event stream of the
// Insteon bridge.
//
// This package provides:
//   - read-only REST endpoints for the device registry and platform map
//   - a level command endpoint for group 1 of Insteon devices
//   - a status endpoint with modem, bridge and runtime counters
//   - a WebSocket hub broadcasting device status and button events
//   - middleware for request IDs, logging, panic recovery and body limits
//
// The server is optional and disabled by default. It binds to localhost
// unless configured otherwise and carries no authentication, so it must
// not be exposed beyond the host running the bridge.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
