package ipc

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func startTestServer(t *testing.T, handler Handler) *Server {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "ck.sock")
	srv := NewServer(ServerConfig{SocketPath: socket, Version: "test"}, handler)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func dialTestServer(t *testing.T, srv *Server) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		SocketPath:     srv.SocketPath(),
		RequestTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// ============================================================================
// Wire format
// ============================================================================

func TestMessageRoundTrip(t *testing.T) {
	msg := NewMessage(MsgStatus, 42, []byte(`{"x":1}`))

	var buf bytes.Buffer
	if err := msg.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Header.Type != MsgStatus || got.Header.RequestID != 42 {
		t.Errorf("header = %+v", got.Header)
	}
	if string(got.Payload) != `{"x":1}` {
		t.Errorf("payload = %s", got.Payload)
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	msg := NewMessage(MsgPing, 1, nil)
	msg.Header.Magic = 0xDEADBEEF

	var buf bytes.Buffer
	if err := msg.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := ReadHeader(&buf); err == nil {
		t.Fatal("ReadHeader accepted a bad magic number")
	}
}

func TestReadMessageRejectsHugePayload(t *testing.T) {
	msg := NewMessage(MsgPing, 1, nil)
	msg.Header.Length = MaxPayload + 1

	var buf bytes.Buffer
	if err := msg.Header.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := ReadMessage(&buf); err == nil {
		t.Fatal("ReadMessage accepted an oversized payload")
	}
}

// ============================================================================
// Server and client
// ============================================================================

func TestPing(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dialTestServer(t, srv)

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestHandlerDispatch(t *testing.T) {
	handler := HandlerFunc(func(_ context.Context, msg *Message) (*Message, error) {
		if msg.Header.Type != MsgStatus {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "unexpected type"), nil
		}
		return NewResponse(MsgStatusResp, msg.Header.RequestID, &StatusResponse{
			Version: "1.2.3",
			Enabled: true,
		})
	})

	srv := startTestServer(t, handler)
	c := dialTestServer(t, srv)

	status, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Version != "1.2.3" || !status.Enabled {
		t.Errorf("status = %+v", status)
	}
}

func TestErrorResponseSurfaces(t *testing.T) {
	handler := HandlerFunc(func(_ context.Context, msg *Message) (*Message, error) {
		return NewErrorMessage(msg.Header.RequestID, ErrUnavailable, "store disabled"), nil
	})

	srv := startTestServer(t, handler)
	c := dialTestServer(t, srv)

	if _, err := c.VerifyChain(); err == nil {
		t.Fatal("VerifyChain should surface the daemon error")
	}
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	srv := startTestServer(t, nil)
	c := dialTestServer(t, srv)

	events := make(chan MatchEvent, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- c.Watch(ctx, func(ev MatchEvent) {
			select {
			case events <- ev:
			default:
			}
		})
	}()

	// Wait for the subscription to register before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for srv.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	srv.Broadcast(&MatchEvent{Sequence: "TLTRBR", Source: "touch", Timestamp: time.Now()})

	select {
	case ev := <-events:
		if ev.Sequence != "TLTRBR" || ev.Source != "touch" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for match event")
	}

	cancel()
	<-watchDone
}

func TestConnectFailsWithoutDaemon(t *testing.T) {
	_, err := NewClient(ClientConfig{
		SocketPath:     filepath.Join(t.TempDir(), "absent.sock"),
		ConnectTimeout: 100 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("NewClient connected to a missing socket")
	}
}

func TestStopRemovesSocket(t *testing.T) {
	srv := startTestServer(t, nil)
	path := srv.SocketPath()

	if !IsSocketListening(path) {
		t.Fatal("server not listening")
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if IsSocketListening(path) {
		t.Error("socket still listening after Stop")
	}
}

// Broadcast may race a concurrent Stop; the event is dropped, never sent on
// a closed channel.
func TestBroadcastDuringStop(t *testing.T) {
	for i := 0; i < 50; i++ {
		srv := startTestServer(t, nil)

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					srv.Broadcast(&MatchEvent{Sequence: "TLTRBLBR", Source: "touch"})
				}
			}()
		}
		if err := srv.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
		wg.Wait()
	}
}
