//go:build integration

package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"
)

// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func connectTest(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func TestIntegration_ConnectAndHealth(t *testing.T) {
	client := connectTest(t, "insteon-int-health")

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	client := connectTest(t, "insteon-int-roundtrip")

	var mu sync.Mutex
	var received []string
	done := make(chan struct{}, 1)

	topic := Topics{}.Event("insteon/test/event", "1a2b3c")
	err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		mu.Lock()
		received = append(received, string(payload))
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if client.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", client.SubscriptionCount())
	}

	if err := client.PublishEvent(topic, []byte(`{"group":1}`)); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0] != `{"group":1}` {
		t.Errorf("received = %v", received)
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

func TestIntegration_CloseMarksOffline(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "insteon-int-close"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.PublishRetained("insteon/test", []byte("x")); err == nil {
		t.Error("PublishRetained() after Close() error = nil")
	}
}
