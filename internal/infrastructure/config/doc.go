// Package config handles loading and validating the Insteon bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields, overrides and X10 declarations
//   - Default value handling
//
// The modem target is either a hub (insteon.hub.host set) or a serial
// PowerLinc Modem (insteon.serial.device). The hub always takes precedence.
//
// Security Considerations:
//   - Hub and MQTT passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Insteon.Hub)
package config
