// Package dashboard streams task activity to WebSocket clients.
//
// Each client gets its own send queue and writer goroutine. A client whose
// queue fills up is disconnected rather than slowing down the others.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	clientQueueSize = 32
	writeTimeout    = 5 * time.Second
)

// Config holds server configuration.
type Config struct {
	// Port to listen on (default 8080; 0 picks a free port).
	Port int

	Logger *log.Logger
}

// DefaultConfig returns the default port and logger.
func DefaultConfig() *Config {
	return &Config{Port: 8080, Logger: log.Default()}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server accepts WebSocket clients and fans messages out to them.
type Server struct {
	addr     string
	listener net.Listener
	http     *http.Server
	logger   *log.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	welcome func() Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server. Call Start to begin listening.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    fmt.Sprintf(":%d", config.Port),
		logger:  config.Logger,
		clients: make(map[*client]struct{}),
		welcome: func() Message { return Message{Type: MessageTypeStats} },
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetWelcome sets the message each client receives first. Call it before
// Start.
func (s *Server) SetWelcome(fn func() Message) {
	if fn != nil {
		s.welcome = fn
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard listening on %s", ln.Addr())
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// Stop disconnects every client and shuts the listener down.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		s.drop(c, websocket.StatusGoingAway, "server shutting down")
	}

	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}
	s.wg.Wait()
	s.logger.Println("Dashboard stopped")
	return nil
}

// Broadcast queues msg for every connected client without blocking.
func (s *Server) Broadcast(msg Message) {
	if s.ctx.Err() != nil {
		return
	}
	data, err := msg.encode()
	if err != nil {
		s.logger.Printf("Failed to marshal %s message: %v", msg.Type, err)
		return
	}

	var slow []*client
	s.mu.RLock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range slow {
		s.logger.Println("Warning: client queue full, disconnecting")
		s.drop(c, websocket.StatusPolicyViolation, "too slow")
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientQueueSize)}
	if data, err := s.welcome().encode(); err == nil {
		c.send <- data
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Printf("Client connected (total: %d)", n)

	s.wg.Add(1)
	go s.writeLoop(c)

	// Client messages are ignored; reading detects the close.
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			s.drop(c, websocket.StatusNormalClosure, "")
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	defer s.wg.Done()
	for data := range c.send {
		ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			s.drop(c, websocket.StatusInternalError, "write failed")
			return
		}
	}
}

// drop unregisters c once and closes its connection.
func (s *Server) drop(c *client, code websocket.StatusCode, reason string) {
	s.mu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c)
	close(c.send)
	n := len(s.clients)
	s.mu.Unlock()

	_ = c.conn.Close(code, reason)
	s.logger.Printf("Client disconnected (total: %d)", n)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Todo Dashboard</title></head>
<body>
    <h1>Todo Dashboard</h1>
    <p>WebSocket: <code>ws://%s/ws</code> (task_update, dep_update, stats, reminder)</p>
    <p>Health: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

// GetAddr returns the listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
