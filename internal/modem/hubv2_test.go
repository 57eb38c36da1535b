package modem

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// hubBuffer renders a /buffstatus.xml body holding data.
func hubBuffer(data []byte) string {
	h := strings.ToUpper(hex.EncodeToString(data))
	padded := h + strings.Repeat("0", 200-len(h))
	return fmt.Sprintf("<response><BS>%s%02X</BS></response>", padded, len(h))
}

type fakeHub struct {
	mu       sync.Mutex
	buffer   []byte
	commands []string
	clears   int
	polls    int
	failures int // buffer polls answered 500 before serving
}

func (h *fakeHub) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		h.mu.Lock()
		defer h.mu.Unlock()

		switch {
		case r.URL.Path == "/buffstatus.xml":
			h.polls++
			if h.failures > 0 {
				h.failures--
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, hubBuffer(h.buffer))
		case r.URL.Path == "/1" && r.URL.RawQuery == "XB=M=1":
			h.buffer = nil
			h.clears++
		case r.URL.Path == "/3":
			h.commands = append(h.commands, r.URL.RawQuery)
		default:
			t.Errorf("unexpected request %s", r.URL)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestParseHubBuffer(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []byte
		wantErr bool
	}{
		{name: "empty", raw: strings.Repeat("0", 202), want: []byte{}},
		{name: "two bytes", raw: "0250" + strings.Repeat("0", 196) + "04", want: []byte{0x02, 0x50}},
		{name: "index past end is clamped", raw: "0250FF", want: []byte{0x02, 0x50}},
		{name: "too short", raw: "0", want: nil},
		{name: "bad index", raw: "0250ZZ", wantErr: true},
		{name: "bad data", raw: "ZZZZ04", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHubBuffer(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMessage) {
					t.Errorf("error = %v, want ErrInvalidMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if string(got) != string(tt.want) {
				t.Errorf("parseHubBuffer() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestHubHTTPConn_ReadWrite(t *testing.T) {
	hub := &fakeHub{buffer: frameGroupOn}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	conn := newHubHTTPConn(srv.URL, "user", "secret", 10*time.Millisecond)
	defer conn.Close()

	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(buf[:n]) != string(frameGroupOn) {
		t.Errorf("Read() = % X, want % X", buf[:n], frameGroupOn)
	}

	if _, err := conn.Write(StatusRequest([3]byte{0x1A, 0x2B, 0x3C}).Encode()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.clears != 1 {
		t.Errorf("buffer cleared %d times, want 1", hub.clears)
	}
	if len(hub.commands) != 1 || hub.commands[0] != "02621A2B3C0F1900=I=3" {
		t.Errorf("commands = %v", hub.commands)
	}
}

func TestHubHTTPConn_CloseUnblocksRead(t *testing.T) {
	hub := &fakeHub{}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	conn := newHubHTTPConn(srv.URL, "user", "secret", 10*time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Read(make([]byte, 16))
		errCh <- err
	}()

	time.Sleep(30 * time.Millisecond)
	conn.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, io.EOF) {
			t.Errorf("Read() after Close error = %v, want io.EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read() did not return after Close")
	}

	if _, err := conn.Write([]byte{0x02}); err == nil {
		t.Error("Write() after Close error = nil")
	}
}

func TestDialHubHTTP_BadCredentials(t *testing.T) {
	hub := &fakeHub{}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	_, err := DialHub(context.Background(), HubTarget{
		Host: host, Port: port, Username: "user", Password: "wrong", Version: HubVersion2,
	})
	if err == nil {
		t.Fatal("DialHub() with bad credentials error = nil")
	}

	conn, err := DialHub(context.Background(), HubTarget{
		Host: host, Port: port, Username: "user", Password: "secret", Version: HubVersion2,
	})
	if err != nil {
		t.Fatalf("DialHub() error = %v", err)
	}
	conn.Close()
}

func TestHubHTTPConn_ReadRetriesFailedPolls(t *testing.T) {
	hub := &fakeHub{buffer: frameGroupOn, failures: 2}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	conn := newHubHTTPConn(srv.URL, "user", "secret", 10*time.Millisecond)
	conn.retry = time.Millisecond
	defer conn.Close()

	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(buf[:n]) != string(frameGroupOn) {
		t.Errorf("Read() = % X, want % X", buf[:n], frameGroupOn)
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.polls != 3 {
		t.Errorf("polls = %d, want 3", hub.polls)
	}
}

func TestHubHTTPConn_ReadGivesUp(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		failures  int
		wantPolls int
	}{
		{name: "rejected credentials are not retried", password: "wrong", wantPolls: 0},
		{name: "persistent failure", password: "secret", failures: 100, wantPolls: hubPollRetries + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := &fakeHub{failures: tt.failures}
			srv := httptest.NewServer(hub.handler(t))
			defer srv.Close()

			conn := newHubHTTPConn(srv.URL, "user", tt.password, 10*time.Millisecond)
			conn.retry = time.Millisecond
			defer conn.Close()

			if _, err := conn.Read(make([]byte, 16)); err == nil || errors.Is(err, io.EOF) {
				t.Fatalf("Read() error = %v, want a poll failure", err)
			}

			hub.mu.Lock()
			defer hub.mu.Unlock()
			if hub.polls != tt.wantPolls {
				t.Errorf("polls = %d, want %d", hub.polls, tt.wantPolls)
			}
		})
	}
}
