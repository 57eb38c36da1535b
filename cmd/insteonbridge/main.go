// Insteon Bridge exposes an Insteon network to Home Assistant over MQTT.
//
// It talks to a PowerLinc Modem over serial or to an Insteon Hub over the
// network, keeps a persistent registry of the devices it has seen, and
// publishes them through MQTT discovery.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/insteon-bridge/internal/api"
	"github.com/nerrad567/insteon-bridge/internal/bridge"
	"github.com/nerrad567/insteon-bridge/internal/device"
	"github.com/nerrad567/insteon-bridge/internal/hass"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/config"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/insteon-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/insteon-bridge/internal/modem"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the bridge and blocks until ctx is cancelled. Deferred
// teardown runs in reverse order of construction.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting insteon bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	if err := os.MkdirAll(cfg.Insteon.WorkDir, 0o750); err != nil {
		return fmt.Errorf("creating workdir: %w", err)
	}

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))

	// InfluxDB (optional)
	influxClient, err := connectInflux(ctx, cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	// Modem
	modemLog := log.With("component", "modem")
	modemMgr := modem.New(modem.Options{
		Hub: modem.HubTarget{
			Host:     cfg.Insteon.Hub.Host,
			Port:     cfg.Insteon.Hub.Port,
			Username: cfg.Insteon.Hub.Username,
			Password: cfg.Insteon.Hub.Password,
			Version:  cfg.Insteon.Hub.Version,
		},
		Serial: modem.SerialTarget{
			Device: cfg.Insteon.Serial.Device,
			Baud:   cfg.Insteon.Serial.Baud,
		},
		Logger: modemLog,
		OnStateChange: func(s modem.State) {
			modemLog.Info("modem state changed", "state", s.String())
			if influxClient != nil {
				influxClient.WriteModemState(s.String(), s == modem.StateConnected)
			}
		},
	})

	registry := device.NewRegistry()
	registry.SetLogger(log.With("component", "registry"))

	// Home Assistant adapters
	hassLog := log.With("component", "hass")
	discovery := hass.NewDiscovery(mqttClient, registry, cfg.HASS, hassLog)
	events := hass.NewEvents(mqttClient, cfg.HASS, hassLog)
	states := hass.NewStatePublisher(mqttClient, hassLog)

	hub := api.NewHub(cfg.API.WS, log.With("component", "websocket"))
	events.OnEvent = func(ev hass.Event) { hub.Broadcast(api.ChannelDeviceEvent, ev) }

	sinks := []bridge.StatusSink{states, hub}
	if influxClient != nil {
		sinks = append(sinks, influxClient)
	}

	b, err := bridge.New(bridge.Options{
		Modem:     modemMgr,
		Registry:  registry,
		Store:     bridge.SQLiteStoreOpener(cfg.Database.WALMode, cfg.Database.BusyTimeout),
		WorkDir:   cfg.Insteon.WorkDir,
		Overrides: cfg.Insteon.Overrides,
		X10:       cfg.Insteon.X10,
		Platforms: discovery,
		Events:    events,
		Sinks:     sinks,
		Logger:    log.With("component", "bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if err := discovery.Start(ctx); err != nil {
		log.Warn("could not follow Home Assistant status", "error", err)
	}

	bridgeCtx, stopBridge := context.WithCancel(ctx)
	defer func() {
		stopBridge()
		b.Wait()
		log.Info("bridge stopped")
	}()
	if err := b.Setup(bridgeCtx); err != nil {
		return fmt.Errorf("setting up bridge: %w", err)
	}

	commands := hass.NewCommands(mqttClient, b, hassLog)
	if err := commands.Start(bridgeCtx); err != nil {
		log.Warn("device commands unavailable", "error", err)
	}

	// Admin API (optional)
	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:     cfg.API,
			Logger:     log.With("component", "api"),
			Registry:   registry,
			Modem:      modemMgr,
			Bridge:     b,
			Controller: b,
			MQTT:       mqttClient,
			Hub:        hub,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		log.Warn("health check failed", "error", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"devices", registry.Count(),
		"modem", modemMgr.State().String(),
	)
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns INSTEON_BRIDGE_CONFIG, or the default path.
func getConfigPath() string {
	if path := os.Getenv("INSTEON_BRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInflux returns nil without error when telemetry is disabled.
func connectInflux(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected", "url", cfg.URL, "bucket", cfg.Bucket)
	return client, nil
}

// healthCheck verifies the infrastructure connections. influxClient may
// be nil.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
