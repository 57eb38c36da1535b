package mqtt

import (
	"crypto/tls"
	"net/url"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/insteon-bridge/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// Milliseconds paho waits for in-flight work on Disconnect.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2
)

// brokerURL renders the paho server URL for cfg.
func brokerURL(cfg config.MQTTBrokerConfig) string {
	u := url.URL{Scheme: "tcp", Host: cfg.Host + ":" + strconv.Itoa(cfg.Port)}
	if cfg.TLS {
		u.Scheme = "ssl"
	}
	return u.String()
}

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(seconds(cfg.Reconnect.InitialDelay)).
		SetMaxReconnectInterval(seconds(cfg.Reconnect.MaxDelay)).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// configureLWT has the broker publish "offline" on the bridge status
// topic when the session drops uncleanly.
func configureLWT(opts *pahomqtt.ClientOptions) {
	opts.SetWill(topics.BridgeStatus(), PayloadOffline, 1, true)
}
