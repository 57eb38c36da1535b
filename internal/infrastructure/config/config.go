package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Hub protocol versions.
const (
	HubVersion1 = 1
	HubVersion2 = 2
)

// Defaults applied before the YAML file is read.
const (
	DefaultHubPortV1   = 9761
	DefaultHubPortV2   = 25105
	DefaultSerialBaud  = 19200
	DefaultX10DimSteps = 22

	minDimSteps = 2
	maxDimSteps = 255
	maxUnitCode = 16
)

// Config is the root configuration structure for the Insteon bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Insteon  InsteonConfig  `yaml:"insteon"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HASS     HASSConfig     `yaml:"hass"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InsteonConfig describes the modem connection and the user-declared devices.
type InsteonConfig struct {
	// WorkDir holds the persisted device registry.
	WorkDir string `yaml:"workdir"`

	// Hub selects the networked hub path when Hub.Host is set.
	Hub HubConfig `yaml:"hub"`

	// Serial is used only when no hub host is configured.
	Serial SerialConfig `yaml:"serial"`

	Overrides []OverrideConfig `yaml:"overrides"`
	X10       []X10Config      `yaml:"x10"`
}

// HubConfig contains Insteon Hub connection settings.
type HubConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`

	// Password for hub authentication.
	// WARNING: Never log this value. Use String() method for safe logging.
	Password string `yaml:"password"`
	Version  int    `yaml:"version"`
}

// String returns a string representation with password masked.
func (h HubConfig) String() string {
	password := ""
	if h.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("HubConfig{Host:%q, Port:%d, Username:%q, Password:%s, Version:%d}",
		h.Host, h.Port, h.Username, password, h.Version)
}

// MarshalJSON implements json.Marshaler to redact the password in JSON output.
func (h HubConfig) MarshalJSON() ([]byte, error) {
	type redacted HubConfig
	safe := redacted(h)
	if safe.Password != "" {
		safe.Password = "[REDACTED]"
	}
	return json.Marshal(safe)
}

// SerialConfig contains PowerLinc Modem serial settings.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// OverrideConfig corrects the classification of one device.
// Nil fields are not applied.
type OverrideConfig struct {
	Address    string `yaml:"address"`
	Cat        *int   `yaml:"cat,omitempty"`
	Subcat     *int   `yaml:"subcat,omitempty"`
	Firmware   *int   `yaml:"firmware,omitempty"` // sets the product key
	ProductKey *int   `yaml:"product_key,omitempty"`
}

// X10Config declares a legacy house/unit coded device.
type X10Config struct {
	HouseCode string `yaml:"housecode"`
	UnitCode  int    `yaml:"unitcode"`
	Platform  string `yaml:"platform"`
	DimSteps  int    `yaml:"dim_steps"`
}

// DatabaseConfig contains SQLite settings for the registry store.
type DatabaseConfig struct {
	WALMode     bool `yaml:"wal_mode"`
	BusyTimeout int  `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// HASSConfig contains Home Assistant MQTT integration settings.
type HASSConfig struct {
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	EventTopic      string `yaml:"event_topic"`
}

// APIConfig contains admin HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	WS       WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains settings of the live event stream.
type WebSocketConfig struct {
	PingInterval   int `yaml:"ping_interval"` // seconds
	PongTimeout    int `yaml:"pong_timeout"`  // seconds
	MaxMessageSize int `yaml:"max_message_size"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: INSTEON_BRIDGE_SECTION_KEY
// For example: INSTEON_BRIDGE_HUB_PASSWORD, INSTEON_BRIDGE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Insteon: InsteonConfig{
			WorkDir: "./data",
			Hub: HubConfig{
				Version: HubVersion2,
			},
			Serial: SerialConfig{
				Baud: DefaultSerialBaud,
			},
		},
		Database: DatabaseConfig{
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "insteon-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		HASS: HASSConfig{
			DiscoveryPrefix: "homeassistant",
			EventTopic:      "insteon/event",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8099,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
			WS: WebSocketConfig{
				PingInterval:   30,
				PongTimeout:    10,
				MaxMessageSize: 4096,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyDerivedDefaults fills defaults that depend on other values.
func (c *Config) applyDerivedDefaults() {
	if c.Insteon.Hub.Port == 0 {
		if c.Insteon.Hub.Version == HubVersion1 {
			c.Insteon.Hub.Port = DefaultHubPortV1
		} else {
			c.Insteon.Hub.Port = DefaultHubPortV2
		}
	}
	for i := range c.Insteon.X10 {
		if c.Insteon.X10[i].DimSteps == 0 {
			c.Insteon.X10[i].DimSteps = DefaultX10DimSteps
		}
		c.Insteon.X10[i].HouseCode = strings.ToLower(c.Insteon.X10[i].HouseCode)
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INSTEON_BRIDGE_WORKDIR"); v != "" {
		cfg.Insteon.WorkDir = v
	}

	// Hub credentials should come from the environment in production
	if v := os.Getenv("INSTEON_BRIDGE_HUB_HOST"); v != "" {
		cfg.Insteon.Hub.Host = v
	}
	if v := os.Getenv("INSTEON_BRIDGE_HUB_USERNAME"); v != "" {
		cfg.Insteon.Hub.Username = v
	}
	if v := os.Getenv("INSTEON_BRIDGE_HUB_PASSWORD"); v != "" {
		cfg.Insteon.Hub.Password = v
	}
	if v := os.Getenv("INSTEON_BRIDGE_SERIAL_DEVICE"); v != "" {
		cfg.Insteon.Serial.Device = v
	}

	// MQTT
	if v := os.Getenv("INSTEON_BRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("INSTEON_BRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("INSTEON_BRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("INSTEON_BRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("INSTEON_BRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
// All problems are collected and returned as a single error.
func (c *Config) Validate() error {
	var errs []string

	if c.Insteon.WorkDir == "" {
		errs = append(errs, "insteon.workdir is required")
	}

	// Modem target: hub host or serial device, never neither
	if c.Insteon.Hub.Host == "" && c.Insteon.Serial.Device == "" {
		errs = append(errs, "one of insteon.hub.host or insteon.serial.device is required")
	}
	if c.Insteon.Hub.Host != "" {
		if c.Insteon.Hub.Port < 1 || c.Insteon.Hub.Port > 65535 {
			errs = append(errs, "insteon.hub.port must be between 1 and 65535")
		}
		if c.Insteon.Hub.Version != HubVersion1 && c.Insteon.Hub.Version != HubVersion2 {
			errs = append(errs, "insteon.hub.version must be 1 or 2")
		}
		if c.Insteon.Hub.Version == HubVersion2 && (c.Insteon.Hub.Username == "" || c.Insteon.Hub.Password == "") {
			errs = append(errs, "insteon.hub.username and insteon.hub.password are required for hub version 2")
		}
	}

	for i, o := range c.Insteon.Overrides {
		errs = append(errs, o.validate(i)...)
	}
	for i, x := range c.Insteon.X10 {
		errs = append(errs, x.validate(i)...)
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Enabled && (c.API.WS.PingInterval < 1 || c.API.WS.PongTimeout < 1) {
		errs = append(errs, "api.websocket.ping_interval and pong_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (o OverrideConfig) validate(i int) []string {
	var errs []string
	prefix := fmt.Sprintf("insteon.overrides[%d]", i)

	if o.Address == "" {
		errs = append(errs, prefix+".address is required")
	}

	hasClass := o.Cat != nil || o.Subcat != nil
	hasProduct := o.Firmware != nil || o.ProductKey != nil
	if !hasClass && !hasProduct {
		errs = append(errs, prefix+" must set cat, subcat, firmware or product_key")
	}

	for name, v := range map[string]*int{"cat": o.Cat, "subcat": o.Subcat, "firmware": o.Firmware} {
		if v != nil && (*v < 0 || *v > 0xff) {
			errs = append(errs, fmt.Sprintf("%s.%s must be between 0x00 and 0xff", prefix, name))
		}
	}
	if o.ProductKey != nil && (*o.ProductKey < 0 || *o.ProductKey > 0xffffff) {
		errs = append(errs, prefix+".product_key must be between 0x000000 and 0xffffff")
	}

	return errs
}

func (x X10Config) validate(i int) []string {
	var errs []string
	prefix := fmt.Sprintf("insteon.x10[%d]", i)

	if len(x.HouseCode) != 1 || x.HouseCode[0] < 'a' || x.HouseCode[0] > 'p' {
		errs = append(errs, prefix+".housecode must be a single letter a-p")
	}
	if x.UnitCode < 1 || x.UnitCode > maxUnitCode {
		errs = append(errs, prefix+".unitcode must be between 1 and 16")
	}
	switch x.Platform {
	case "light", "switch", "binary_sensor":
	default:
		errs = append(errs, prefix+".platform must be light, switch or binary_sensor")
	}
	if x.DimSteps < minDimSteps || x.DimSteps > maxDimSteps {
		errs = append(errs, prefix+".dim_steps must be between 2 and 255")
	}

	return errs
}

// UseHub reports whether the hub path is configured.
// The hub takes precedence over the serial device.
func (c *InsteonConfig) UseHub() bool {
	return c.Hub.Host != ""
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
