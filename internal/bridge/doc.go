// Package bridge wires the modem session to the device registry and the
// hosting platform.
//
// Setup runs once at startup:
//
//	b, err := bridge.New(bridge.Options{Modem: m, Registry: reg, ...})
//	if err := b.Setup(ctx); err != nil { ... }
//	defer b.Wait()
//
// An unreachable modem is not fatal: Setup logs the failure and returns
// nil with nothing loaded. After a successful connect, the persisted
// registry is loaded, the message router is installed, a background
// refresh is started, configured overrides and X10 devices are applied,
// and every platform category in use is announced once.
//
// The background refresh queries the status of every device, asks
// unidentified devices to identify themselves and saves the registry.
// Setup never waits for it.
package bridge
