package modem

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestX10_Encode(t *testing.T) {
	tests := []struct {
		name  string
		build func() (X10Message, error)
		want  []byte
	}{
		{"unit a5", func() (X10Message, error) { return X10Unit("a", 5) }, []byte{0x02, 0x63, 0x61, 0x00}},
		{"unit P16", func() (X10Message, error) { return X10Unit("P", 16) }, []byte{0x02, 0x63, 0xCC, 0x00}},
		{"a on", func() (X10Message, error) { return X10Command("a", X10On) }, []byte{0x02, 0x63, 0x62, 0x80}},
		{"m dim", func() (X10Message, error) { return X10Command("m", X10Dim) }, []byte{0x02, 0x63, 0x04, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := tt.build()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got := msg.Encode(); !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestX10_Invalid(t *testing.T) {
	if _, err := X10Unit("q", 1); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("X10Unit(q) error = %v", err)
	}
	if _, err := X10Unit("a", 17); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("X10Unit(a, 17) error = %v", err)
	}
	if _, err := X10Command("a", 0x10); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("X10Command(0x10) error = %v", err)
	}
}

func TestDecoder_X10(t *testing.T) {
	var dec Decoder
	stream := concat(
		[]byte{0x02, 0x52, 0x61, 0x00}, // a5
		frameGroupOn,
		[]byte{0x02, 0x52, 0x63, 0x80}, // a off
	)

	msgs := dec.Feed(stream)
	if len(msgs) != 1 {
		t.Fatalf("Feed() = %d standard messages, want 1", len(msgs))
	}

	x10 := dec.X10()
	if len(x10) != 2 {
		t.Fatalf("X10() = %d frames, want 2", len(x10))
	}
	if x10[0].IsCommand() || x10[0].House() != "a" || x10[0].Unit() != 5 {
		t.Errorf("unit frame misread: %s", x10[0])
	}
	if !x10[1].IsCommand() || x10[1].House() != "a" || x10[1].Command() != X10Off {
		t.Errorf("command frame misread: %s", x10[1])
	}
	if again := dec.X10(); len(again) != 0 {
		t.Errorf("X10() after drain = %v", again)
	}
}

func TestManager_X10RoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	rec := &recordingOpeners{transport: client}
	m := New(Options{Serial: SerialTarget{Device: "/dev/ttyUSB0"}, OpenSerial: rec.open})
	defer m.Disconnect()

	received := make(chan X10Message, 2)
	m.OnX10(func(x X10Message) { received <- x })
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	go server.Write([]byte{0x02, 0x52, 0x61, 0x00}) //nolint:errcheck // Test writer
	select {
	case x := <-received:
		if x.House() != "a" || x.Unit() != 5 {
			t.Errorf("received %s", x)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no X10 frame delivered")
	}

	sent := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 8)
		n, _ := io.ReadFull(server, buf)
		sent <- buf[:n]
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.SendX10(ctx, "a", 5, X10On); err != nil {
		t.Fatalf("SendX10() error = %v", err)
	}
	want := []byte{0x02, 0x63, 0x61, 0x00, 0x02, 0x63, 0x62, 0x80}
	if got := <-sent; !bytes.Equal(got, want) {
		t.Errorf("sent % X, want % X", got, want)
	}
}
