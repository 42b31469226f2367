package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openavr/azurctl/internal/avr"
	"github.com/openavr/azurctl/internal/logging"
)

const (
	// defaultInitialBackoff is the first reconnect delay.
	defaultInitialBackoff = 1 * time.Second

	// defaultMaxBackoff caps the exponential reconnect delay.
	defaultMaxBackoff = 30 * time.Second
)

// SessionConfig configures a single connection attempt.
type SessionConfig struct {
	// OnUpdate is forwarded to the handler: invoked with the raw
	// message whenever device state changes.
	OnUpdate func(raw string)

	// OnClosed is invoked once when the connection drops. The session
	// handler is already closed by then.
	OnClosed func(err error)

	// ProbeRetryDelay overrides the handler's power-on probe retry
	// delay. Zero keeps the default.
	ProbeRetryDelay time.Duration

	Logger *zap.Logger
}

// Session couples one connection with the protocol handler built for
// it. Handler state is per-connection, so a Session is discarded
// whole on disconnect.
type Session struct {
	Conn    *Conn
	Handler *avr.Handler
}

// Connect dials the receiver and wires up a fresh protocol handler.
func Connect(ctx context.Context, addr string, cfg SessionConfig) (*Session, error) {
	conn, err := Dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	h := avr.NewHandler(avr.Config{
		Transport:       conn,
		OnUpdate:        cfg.OnUpdate,
		Logger:          cfg.Logger,
		ProbeRetryDelay: cfg.ProbeRetryDelay,
	})

	conn.Start(h.Feed, func(err error) {
		// Handler state dies with the connection: cancel pending probe
		// timers and stop the run loop before notifying anyone.
		h.Close()
		if cfg.OnClosed != nil {
			cfg.OnClosed(err)
		}
	})

	return &Session{Conn: conn, Handler: h}, nil
}

// Close shuts the session down. Safe to call more than once.
func (s *Session) Close() {
	s.Conn.Close()
}

// ManagerConfig configures a reconnecting connection manager.
type ManagerConfig struct {
	Addr string

	// OnSession is invoked after every successful (re)connect with the
	// freshly built session.
	OnSession func(*Session)

	// OnDisconnect is invoked when an established connection drops
	// (before the next reconnect attempt).
	OnDisconnect func(err error)

	// OnUpdate is forwarded to each session's handler.
	OnUpdate func(raw string)

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Manager keeps a receiver connection alive, redialing with
// exponential backoff and constructing a fresh handler per connection.
type Manager struct {
	cfg ManagerConfig
	log *zap.Logger
}

// NewManager creates a connection manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &Manager{cfg: cfg, log: logging.GetLogger()}
}

// Run connects and keeps reconnecting until the context is canceled.
// It returns the context error on cancellation, or the last connection
// error if it was not retryable.
func (m *Manager) Run(ctx context.Context) error {
	backoff := m.cfg.InitialBackoff

	for {
		closed := make(chan error, 1)
		sess, err := Connect(ctx, m.cfg.Addr, SessionConfig{
			OnUpdate: m.cfg.OnUpdate,
			OnClosed: func(err error) { closed <- err },
		})
		if err != nil {
			if !IsRetryable(err) {
				return err
			}
			m.log.Warn("connect failed, will retry",
				zap.String("addr", m.cfg.Addr),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > m.cfg.MaxBackoff {
				backoff = m.cfg.MaxBackoff
			}
			continue
		}

		// Connected: reset backoff for the next outage.
		backoff = m.cfg.InitialBackoff
		if m.cfg.OnSession != nil {
			m.cfg.OnSession(sess)
		}

		select {
		case <-ctx.Done():
			sess.Close()
			<-sess.Conn.Done()
			return ctx.Err()
		case err := <-closed:
			if m.cfg.OnDisconnect != nil {
				m.cfg.OnDisconnect(err)
			}
		}
	}
}
