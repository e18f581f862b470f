// Package cdp is a small client for the browser remote-debugging protocol:
// target discovery over HTTP and request/response calls over a WebSocket.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/logging"
)

// DefaultTimeout bounds one call when the context has no earlier deadline.
const DefaultTimeout = 30 * time.Second

// maxMessageSize allows full-page screenshots.
const maxMessageSize = 50 * 1024 * 1024

// Options configures a Session.
type Options struct {
	Timeout time.Duration
	// Settle is how long Navigate waits for the page after enabling events.
	Settle time.Duration
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// Session is one WebSocket connection to a debugging target. Calls are
// serialized; message ids are unique within the session.
type Session struct {
	opts Options

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int64
}

type request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type response struct {
	ID     int64           `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProtocolError  `json:"error,omitempty"`
}

// ProtocolError is an error reply from the browser.
type ProtocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
	if e.Data != "" {
		msg += " (" + e.Data + ")"
	}
	return msg
}

// Dial opens a session to the target's WebSocket debugger URL.
func Dial(ctx context.Context, wsURL string, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	dialer := websocket.Dialer{HandshakeTimeout: opts.Timeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if isTimeout(err) {
			return nil, apperr.ExternalTimeout("cdp dial", err)
		}
		return nil, fmt.Errorf("cdp dial %s: %w", wsURL, err)
	}
	conn.SetReadLimit(maxMessageSize)
	opts.Logger.Debug("cdp session open", zap.String("url", wsURL))
	return &Session{opts: opts, conn: conn}, nil
}

// Close closes the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Call sends method with params and waits for the reply carrying the same
// id. Events and replies to other ids are skipped. An expired deadline is
// an ExternalTimeout error.
func (s *Session) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, apperr.Validation("cdp call", "method is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	deadline := time.Now().Add(s.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := s.conn.WriteJSON(request{ID: id, Method: method, Params: params}); err != nil {
		return nil, s.wrap(method, err)
	}

	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, s.wrap(method, err)
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, s.wrap(method, err)
		}
		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			s.opts.Logger.Debug("skipping undecodable cdp message", zap.Error(err))
			continue
		}
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: %w", method, resp.Error)
		}
		if len(resp.Result) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return resp.Result, nil
	}
}

func (s *Session) wrap(method string, err error) error {
	if isTimeout(err) {
		return apperr.ExternalTimeout("cdp "+method, err)
	}
	return fmt.Errorf("cdp %s: %w", method, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
