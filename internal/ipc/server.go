package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Handler processes requests the server does not handle itself.
type Handler interface {
	HandleMessage(ctx context.Context, msg *Message) (*Message, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) (*Message, error)

func (f HandlerFunc) HandleMessage(ctx context.Context, msg *Message) (*Message, error) {
	return f(ctx, msg)
}

// ServerConfig configures the IPC server.
type ServerConfig struct {
	SocketPath     string
	Version        string
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Logger         *slog.Logger
}

// Server accepts local clients on a unix socket. Connections from other
// users are rejected via peer credentials.
type Server struct {
	mu          sync.RWMutex
	listener    net.Listener
	socketPath  string
	handler     Handler
	maxConns    int
	readTimeout time.Duration
	writeTimeout time.Duration
	logger      *slog.Logger
	clients     map[uint64]*clientConn
	subscribers map[uint64]*clientConn

	nextClientID atomic.Uint64
	nextMsgID    atomic.Uint32
	running      atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	eventChan chan *MatchEvent
}

type clientConn struct {
	id   uint64
	conn net.Conn

	writeMu sync.Mutex
}

// NewServer creates a server. Start must be called before it accepts
// connections.
func NewServer(cfg ServerConfig, handler Handler) *Server {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 16
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath:   cfg.SocketPath,
		handler:      handler,
		maxConns:     cfg.MaxConnections,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		logger:       cfg.Logger,
		clients:      make(map[uint64]*clientConn),
		subscribers:  make(map[uint64]*clientConn),
		ctx:          ctx,
		cancel:       cancel,
		eventChan:    make(chan *MatchEvent, 64),
	}
}

// Start listens on the unix socket.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := CleanupSocket(s.socketPath); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}

	s.listener = listener
	s.running.Store(true)

	s.wg.Add(2)
	go s.eventBroadcaster()
	go s.acceptLoop()

	s.logger.Info("ipc server listening", "socket", s.socketPath)
	return nil
}

// Stop shuts the server down and removes the socket file.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.logger.Warn("ipc shutdown timed out")
	}

	os.Remove(s.socketPath)
	return nil
}

// SocketPath returns the listening socket path.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// SubscriberCount returns the number of event subscribers.
func (s *Server) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Broadcast queues a match event for all subscribers. Events are dropped
// rather than blocking the recognizer when the queue is full.
func (s *Server) Broadcast(ev *MatchEvent) {
	if !s.running.Load() {
		return
	}
	select {
	case s.eventChan <- ev:
	default:
		s.logger.Warn("event queue full, dropping match event")
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				continue
			}
		}

		ok, err := VerifyPeerIsCurrentUser(conn)
		if err != nil || !ok {
			s.logger.Warn("rejected ipc connection", "error", err)
			conn.Close()
			continue
		}

		s.mu.Lock()
		if len(s.clients) >= s.maxConns {
			s.mu.Unlock()
			conn.Close()
			continue
		}
		client := &clientConn{id: s.nextClientID.Add(1), conn: conn}
		s.clients[client.id] = client
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(client)
	}
}

func (s *Server) handleConnection(client *clientConn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.clients, client.id)
		delete(s.subscribers, client.id)
		s.mu.Unlock()
		client.conn.Close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		client.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		msg, err := ReadMessage(client.conn)
		if err != nil {
			if err == io.EOF || errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Subscribers idle between matches; keep them connected.
				s.mu.RLock()
				_, subscribed := s.subscribers[client.id]
				s.mu.RUnlock()
				if subscribed {
					continue
				}
			}
			return
		}

		resp, err := s.processMessage(msg)
		if err != nil {
			resp = NewErrorMessage(msg.Header.RequestID, ErrInternalError, err.Error())
		}
		if resp != nil {
			if err := s.sendMessage(client, resp); err != nil {
				return
			}
		}

		if msg.Header.Type == MsgSubscribe {
			s.mu.Lock()
			s.subscribers[client.id] = client
			s.mu.Unlock()
		}
	}
}

func (s *Server) processMessage(msg *Message) (*Message, error) {
	switch msg.Header.Type {
	case MsgPing:
		return NewMessage(MsgPong, msg.Header.RequestID, nil), nil
	case MsgSubscribe:
		return NewResponse(MsgSubscribeResp, msg.Header.RequestID, &SubscribeResponse{Success: true})
	default:
		if s.handler == nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "no handler"), nil
		}
		return s.handler.HandleMessage(s.ctx, msg)
	}
}

// eventBroadcaster drains the event queue until shutdown. The channel is
// never closed; Broadcast may race with Stop, and a send on an open channel
// the broadcaster no longer reads is merely dropped.
func (s *Server) eventBroadcaster() {
	defer s.wg.Done()

	for {
		var ev *MatchEvent
		select {
		case <-s.ctx.Done():
			return
		case ev = <-s.eventChan:
		}

		payload, err := Encode(ev)
		if err != nil {
			continue
		}
		msg := NewMessage(MsgMatchEvent, s.nextMsgID.Add(1), payload)

		s.mu.RLock()
		targets := make([]*clientConn, 0, len(s.subscribers))
		for _, c := range s.subscribers {
			targets = append(targets, c)
		}
		s.mu.RUnlock()

		for _, c := range targets {
			if err := s.sendMessage(c, msg); err != nil {
				c.conn.Close()
			}
		}
	}
}

func (s *Server) sendMessage(client *clientConn, msg *Message) error {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	client.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return msg.Write(client.conn)
}
