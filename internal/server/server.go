package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openavr/azurctl/internal/avr"
	"github.com/openavr/azurctl/internal/logging"
	"github.com/openavr/azurctl/internal/transport"
)

// Config holds the server configuration
type Config struct {
	Host         string
	Port         int
	ReceiverAddr string // receiver control address (host:port)
	LogLevel     string
}

// Server bridges one receiver to HTTP and WebSocket clients.
type Server struct {
	config *Config
	hub    *hub

	mu   sync.RWMutex
	sess *transport.Session // nil while the receiver is unreachable
	h    *avr.Handler       // current session's handler

	httpSrv *http.Server
}

// New creates a new Server instance
func New(config *Config) (*Server, error) {
	if err := logging.Initialize(config.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	return &Server{
		config: config,
		hub:    newHub(),
	}, nil
}

// Start starts the server and blocks until shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	logging.Info("Starting receiver bridge",
		zap.String("addr", addr),
		zap.String("receiver", s.config.ReceiverAddr),
		zap.String("log_level", s.config.LogLevel),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Keep the receiver connection alive for the server's lifetime.
	mgr := transport.NewManager(transport.ManagerConfig{
		Addr:         s.config.ReceiverAddr,
		OnSession:    s.onSession,
		OnDisconnect: s.onDisconnect,
		OnUpdate:     s.onReceiverUpdate,
	})
	go func() {
		if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
			logging.Error("Receiver connection manager stopped", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/inputs", s.handleInputs)
	mux.HandleFunc("/api/command", s.handleCommand)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logging.Info("Server listening for connections", zap.String("addr", addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Error shutting down HTTP server", zap.Error(err))
	}

	s.hub.closeAll()

	s.mu.Lock()
	if s.sess != nil {
		s.sess.Close()
		s.sess = nil
		s.h = nil
	}
	s.mu.Unlock()

	logging.Sync()
	return nil
}

// handler returns the current protocol handler, or nil while the
// receiver is unreachable.
func (s *Server) handler() *avr.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h
}

func (s *Server) onSession(sess *transport.Session) {
	s.mu.Lock()
	s.sess = sess
	s.h = sess.Handler
	s.mu.Unlock()

	logging.Info("Receiver connected", zap.String("receiver", s.config.ReceiverAddr))

	// Seed the state table so /api/state has version data immediately.
	sess.Handler.RequestVersions()
	s.broadcastState(sess.Handler)
}

func (s *Server) onDisconnect(err error) {
	s.mu.Lock()
	s.sess = nil
	s.h = nil
	s.mu.Unlock()

	logging.Warn("Receiver disconnected",
		zap.String("receiver", s.config.ReceiverAddr),
		zap.Error(err),
	)
}

// onReceiverUpdate runs on the handler goroutine whenever the receiver
// reported a state change; it pushes a fresh snapshot to all WebSocket
// clients.
func (s *Server) onReceiverUpdate(raw string) {
	logging.Debug("Receiver state changed", zap.String("message", raw))
	if h := s.handler(); h != nil {
		s.broadcastState(h)
	}
}

func (s *Server) broadcastState(h *avr.Handler) {
	payload, err := json.Marshal(stateEnvelope{Type: "state", State: h.Snapshot()})
	if err != nil {
		logging.Error("Failed to marshal state snapshot", zap.Error(err))
		return
	}
	s.hub.broadcast(payload)
}

// stateEnvelope is the message WebSocket clients receive.
type stateEnvelope struct {
	Type  string    `json:"type"`
	State avr.State `json:"state"`
}
