package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"time"

	"cockpit/internal/logging"
)

// authRequestID is the reserved request id used for the initial auth call.
// Regular request ids start above it.
const authRequestID int64 = 1

const maxFrameBytes = 1024 * 1024

// Message is one wire frame: a request carries id+method, a response id
// only, a notification method only.
type Message struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}

type WireError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// Handlers receives traffic the connection cannot correlate to a pending
// call: push notifications and server-initiated requests. Both are invoked
// from the single read loop goroutine, in receipt order.
type Handlers struct {
	OnNotification func(msg Message)
	OnRequest      func(msg Message)
	// OnClosed fires once when the read loop exits. explicit is true when
	// Close was called locally.
	OnClosed func(err error, explicit bool)
}

type Config struct {
	Address string
	Token   string
	// Dialer overrides the network dial; used in tests. When nil, Dial
	// connects over tcp, or a unix socket when Address looks like a path.
	Dialer      func(ctx context.Context) (net.Conn, error)
	DialTimeout time.Duration
	Logger      logging.Logger
}

// Conn owns one physical connection. Calls may be issued concurrently by
// many callers; each gets its own pending slot keyed by request id. Reads
// happen on exactly one goroutine, writes are serialized by a mutex.
type Conn struct {
	raw    net.Conn
	logger logging.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   int64
	pending  map[int64]chan Message
	closed   bool
	explicit bool

	handlers Handlers
}

// Dial establishes the connection and performs the auth handshake with the
// reserved request id before normal operation.
func Dial(ctx context.Context, cfg Config, handlers Handlers) (*Conn, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = func(ctx context.Context) (net.Conn, error) {
			network := "tcp"
			if strings.ContainsAny(cfg.Address, "/\\") {
				network = "unix"
			}
			d := net.Dialer{Timeout: cfg.DialTimeout}
			return d.DialContext(ctx, network, cfg.Address)
		}
	}
	raw, err := dialer(ctx)
	if err != nil {
		return nil, err
	}
	conn := &Conn{
		raw:      raw,
		logger:   logger,
		nextID:   authRequestID + 1,
		pending:  make(map[int64]chan Message),
		handlers: handlers,
	}
	go conn.readLoop()

	if err := conn.authenticate(ctx, cfg.Token); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Info("transport_connected", logging.F("address", cfg.Address))
	return conn, nil
}

func (c *Conn) authenticate(ctx context.Context, token string) error {
	slot := make(chan Message, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.pending[authRequestID] = slot
	c.mu.Unlock()

	id := authRequestID
	if err := c.write(Message{ID: &id, Method: "auth", Params: marshalParams(map[string]any{"token": token})}); err != nil {
		c.dropPending(authRequestID)
		return err
	}
	select {
	case <-ctx.Done():
		c.dropPending(authRequestID)
		return ctx.Err()
	case msg, ok := <-slot:
		if !ok {
			return ErrDisconnected
		}
		if msg.Error != nil {
			return &AuthError{Message: msg.Error.Message}
		}
		return nil
	}
}

// Call writes one framed request and waits for the response with the
// matching id. It fails with *RemoteError when the response carries an
// error and ErrDisconnected when the connection drops first.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	slot := make(chan Message, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrDisconnected
	}
	id := c.nextID
	c.nextID++
	c.pending[id] = slot
	c.mu.Unlock()

	if c.logger.Enabled(logging.Debug) {
		c.logger.Debug("transport_call", logging.F("request_id", id), logging.F("method", method))
	}
	if err := c.write(Message{ID: &id, Method: method, Params: marshalParams(params)}); err != nil {
		c.dropPending(id)
		return nil, err
	}
	select {
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	case msg, ok := <-slot:
		if !ok {
			return nil, ErrDisconnected
		}
		if msg.Error != nil {
			return nil, &RemoteError{Method: method, Message: msg.Error.Message}
		}
		return msg.Result, nil
	}
}

// Notify writes one framed notification; no response is expected.
func (c *Conn) Notify(method string, params any) error {
	return c.write(Message{Method: method, Params: marshalParams(params)})
}

// Respond answers a server-initiated request.
func (c *Conn) Respond(id int64, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.write(Message{ID: &id, Result: raw})
}

func (c *Conn) RespondError(id int64, code int, message string) error {
	return c.write(Message{ID: &id, Error: &WireError{Code: code, Message: message}})
}

// Close tears down the socket and fails every still-pending call with
// ErrDisconnected.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.explicit = true
	c.mu.Unlock()
	return c.raw.Close()
}

func (c *Conn) write(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.raw.Write(append(data, '\n'))
	return err
}

func (c *Conn) readLoop() {
	reader := bufio.NewReaderSize(c.raw, 64*1024)
	var readErr error
	for {
		line, err := readFrame(reader)
		if err != nil {
			readErr = err
			break
		}
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			// Malformed frames are recoverable, never fatal.
			if c.logger.Enabled(logging.Debug) {
				c.logger.Debug("transport_malformed_frame", logging.F("error", err))
			}
			continue
		}
		switch {
		case msg.ID != nil && msg.Method == "":
			c.deliverResponse(msg)
		case msg.ID != nil:
			if c.handlers.OnRequest != nil {
				c.handlers.OnRequest(msg)
			}
		case msg.Method != "":
			if c.handlers.OnNotification != nil {
				c.handlers.OnNotification(msg)
			}
		}
	}
	explicit := c.failPending()
	if c.handlers.OnClosed != nil {
		c.handlers.OnClosed(readErr, explicit)
	}
}

// readFrame reads one newline-delimited frame, tolerating frames longer
// than the reader's buffer up to maxFrameBytes.
func readFrame(reader *bufio.Reader) ([]byte, error) {
	var frame []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		frame = append(frame, chunk...)
		if err == nil {
			return frame[:len(frame)-1], nil
		}
		if err != bufio.ErrBufferFull {
			return frame, err
		}
		if len(frame) > maxFrameBytes {
			// Drain the oversized line, then drop it.
			for err == bufio.ErrBufferFull {
				_, err = reader.ReadSlice('\n')
			}
			if err != nil {
				return nil, err
			}
			return nil, nil
		}
	}
}

func (c *Conn) deliverResponse(msg Message) {
	c.mu.Lock()
	slot := c.pending[*msg.ID]
	delete(c.pending, *msg.ID)
	c.mu.Unlock()
	if slot == nil {
		if c.logger.Enabled(logging.Debug) {
			c.logger.Debug("transport_orphan_response", logging.F("request_id", *msg.ID))
		}
		return
	}
	slot <- msg
}

func (c *Conn) dropPending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) failPending() (explicit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.explicit
	}
	c.closed = true
	for id, slot := range c.pending {
		close(slot)
		delete(c.pending, id)
	}
	_ = c.raw.Close()
	return c.explicit
}

func marshalParams(params any) json.RawMessage {
	if params == nil {
		return nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	return data
}
