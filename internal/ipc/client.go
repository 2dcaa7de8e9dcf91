package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Common client errors.
var (
	ErrNotConnected     = errors.New("not connected to daemon")
	ErrDaemonNotRunning = errors.New("daemon is not running")
)

// ClientConfig configures the IPC client.
type ClientConfig struct {
	SocketPath     string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Client is a synchronous client for the daemon socket. One request is in
// flight at a time; streamed match events arriving in between are skipped
// unless the client is in Watch mode.
type Client struct {
	mu         sync.Mutex
	conn       net.Conn
	socketPath string
	reqTimeout time.Duration
	nextReqID  atomic.Uint32
}

// NewClient creates a client and connects to the daemon.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	conn, err := net.DialTimeout("unix", cfg.SocketPath, cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
	}
	return &Client{
		conn:       conn,
		socketPath: cfg.SocketPath,
		reqTimeout: cfg.RequestTimeout,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTrip sends a request and waits for the response carrying the same
// request id. Match events interleaved on the connection are discarded.
func (c *Client) roundTrip(reqType MessageType, reqPayload any) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	var payload []byte
	if reqPayload != nil {
		var err error
		if payload, err = Encode(reqPayload); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	reqID := c.nextReqID.Add(1)
	msg := NewMessage(reqType, reqID, payload)

	c.conn.SetWriteDeadline(time.Now().Add(c.reqTimeout))
	if err := msg.Write(c.conn); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	deadline := time.Now().Add(c.reqTimeout)
	for {
		c.conn.SetReadDeadline(deadline)
		resp, err := ReadMessage(c.conn)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.Header.Type == MsgMatchEvent {
			continue
		}
		if resp.Header.RequestID != reqID {
			continue
		}
		if resp.Header.Type == MsgError {
			var e ErrorResponse
			if err := Decode(resp.Payload, &e); err != nil {
				return nil, errors.New("daemon returned an unreadable error")
			}
			return nil, fmt.Errorf("daemon error %d: %s", e.Code, e.Message)
		}
		return resp, nil
	}
}

// call performs a round trip and decodes the response payload into out.
func (c *Client) call(reqType MessageType, req, out any) error {
	resp, err := c.roundTrip(reqType, req)
	if err != nil {
		return err
	}
	if out != nil {
		if err := Decode(resp.Payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Ping checks that the daemon responds.
func (c *Client) Ping() error {
	resp, err := c.roundTrip(MsgPing, nil)
	if err != nil {
		return err
	}
	if resp.Header.Type != MsgPong {
		return fmt.Errorf("unexpected response type %#x", resp.Header.Type)
	}
	return nil
}

// Status returns the daemon's current state.
func (c *Client) Status() (*StatusResponse, error) {
	var status StatusResponse
	if err := c.call(MsgStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetEnabled enables or disables the recognizer.
func (c *Client) SetEnabled(enabled bool) (*EnableResponse, error) {
	var resp EnableResponse
	if err := c.call(MsgEnable, &EnableRequest{Enabled: enabled}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Inject feeds a synthetic pointer event into the recognizer.
func (c *Client) Inject(kind string, x, y int) (*InjectResponse, error) {
	var resp InjectResponse
	if err := c.call(MsgInject, &InjectRequest{Kind: kind, X: x, Y: y}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReloadConfig asks the daemon to reload its configuration file.
func (c *Client) ReloadConfig() (*ReloadResponse, error) {
	var resp ReloadResponse
	if err := c.call(MsgReloadConfig, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExportReport fetches the audit report as JSON.
func (c *Client) ExportReport() (json.RawMessage, error) {
	var resp ExportResponse
	if err := c.call(MsgExport, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Report, nil
}

// VerifyChain asks the daemon to verify the audit chain.
func (c *Client) VerifyChain() (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.call(MsgVerify, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Watch subscribes to match events and invokes handler for each one until
// ctx is canceled or the connection drops. The client must not be used for
// other requests while watching.
func (c *Client) Watch(ctx context.Context, handler func(MatchEvent)) error {
	var ack SubscribeResponse
	if err := c.call(MsgSubscribe, nil, &ack); err != nil {
		return err
	}
	if !ack.Success {
		return errors.New("subscription refused")
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Time{})
		msg, err := ReadMessage(conn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if msg.Header.Type != MsgMatchEvent {
			continue
		}
		var ev MatchEvent
		if err := Decode(msg.Payload, &ev); err != nil {
			continue
		}
		handler(ev)
	}
}
