package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"cockpit/internal/logging"
)

type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateAuthFailed   ConnState = "auth_failed"
)

// Supervisor owns the connection lifecycle: at most one live Conn, one
// outstanding reconnect timer, and the backoff schedule. Reconnection is
// automatic and silent except for the state callback; authentication
// failures stop the retry loop.
type Supervisor struct {
	cfg      Config
	handlers Handlers
	logger   logging.Logger

	onStateChange func(state ConnState)

	mu      sync.Mutex
	conn    *Conn
	timer   *time.Timer
	backoff *Backoff
	stopped bool
	state   ConnState
}

func NewSupervisor(cfg Config, handlers Handlers, onStateChange func(ConnState)) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Supervisor{
		cfg:           cfg,
		logger:        logger,
		onStateChange: onStateChange,
		backoff:       NewBackoff(0, 0),
		state:         StateDisconnected,
	}
	userOnClosed := handlers.OnClosed
	handlers.OnClosed = func(err error, explicit bool) {
		s.handleClosed(err, explicit)
		if userOnClosed != nil {
			userOnClosed(err, explicit)
		}
	}
	s.handlers = handlers
	return s
}

// Start connects immediately, cancelling any pending reconnect timer.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrDisconnected
	}
	s.cancelTimerLocked()
	s.mu.Unlock()
	return s.connect(ctx)
}

// Stop tears down the connection and cancels any pending reconnect. All
// pending calls fail with ErrDisconnected.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cancelTimerLocked()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	s.setState(StateDisconnected)
}

// Conn returns the live connection, or nil when disconnected.
func (s *Supervisor) Conn() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Call issues a request on the live connection; it fails immediately with
// ErrDisconnected while the supervisor is between connections.
func (s *Supervisor) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	conn := s.Conn()
	if conn == nil {
		return nil, ErrDisconnected
	}
	return conn.Call(ctx, method, params)
}

func (s *Supervisor) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) connect(ctx context.Context) error {
	s.setState(StateConnecting)
	conn, err := Dial(ctx, s.cfg, s.handlers)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			// Credentials are wrong; retrying the same token is pointless.
			s.logger.Error("transport_auth_failed", logging.F("error", err))
			s.setState(StateAuthFailed)
			return err
		}
		s.logger.Warn("transport_connect_failed", logging.F("error", err))
		s.scheduleReconnect()
		return err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrDisconnected
	}
	s.conn = conn
	s.backoff.Reset()
	s.mu.Unlock()
	s.setState(StateConnected)
	return nil
}

func (s *Supervisor) handleClosed(err error, explicit bool) {
	s.mu.Lock()
	s.conn = nil
	stopped := s.stopped
	s.mu.Unlock()
	if explicit || stopped {
		s.setState(StateDisconnected)
		return
	}
	if err != nil {
		s.logger.Warn("transport_connection_lost", logging.F("error", err))
	}
	s.scheduleReconnect()
}

func (s *Supervisor) scheduleReconnect() {
	s.mu.Lock()
	if s.stopped || s.timer != nil {
		s.mu.Unlock()
		return
	}
	delay := s.backoff.Next()
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.timer = nil
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		_ = s.connect(context.Background())
	})
	s.mu.Unlock()
	s.logger.Info("transport_reconnect_scheduled", logging.F("delay", delay))
	s.setState(StateReconnecting)
}

func (s *Supervisor) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Supervisor) setState(state ConnState) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()
	if changed && s.onStateChange != nil {
		s.onStateChange(state)
	}
}
