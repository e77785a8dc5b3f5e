// File: internal/cdp/channel.go

// Package cdp is a minimal client for the Chrome remote-debugging protocol:
// one persistent websocket per debug target, strictly sequential JSON
// command/response pairs, no retries and no timeouts of its own. Bounded
// waiting belongs to the retry layer above, not here.
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chromehand/internal/retry"
)

// requestID is the fixed correlation id stamped on every command. A single
// id is enough because the channel is single-flight: RunCommand holds the
// channel lock for the whole send/receive cycle, so at most one request is
// ever outstanding. Concurrent in-flight commands would need per-request
// ids plus a pending-request map; that is a known scaling limit of this
// client, not an oversight.
const requestID = 77

const dialTimeout = 10 * time.Second

// Command is one protocol request. ID is stamped by the channel; callers
// only fill Method and Params.
type Command struct {
	ID     int            `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// Response is one protocol reply, matched to its request by ID. Result is
// kept raw because its shape depends entirely on the method.
type Response struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *CommandError   `json:"error,omitempty"`
}

// Channel is a single persistent duplex connection to one debug target.
// It owns exactly one websocket. Safe for concurrent use: commands from
// multiple goroutines are serialized, never pipelined.
type Channel struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	mu       sync.Mutex // single-flight guard over the whole command cycle
	throttle *retry.Throttler

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// DialOption customizes a Channel at dial time.
type DialOption func(*Channel)

// WithThrottle rate-limits commands on the channel to perSecond, protecting
// the browser from tight polling loops. Zero disables the limit.
func WithThrottle(perSecond float64) DialOption {
	return func(c *Channel) { c.throttle = retry.NewThrottler(perSecond) }
}

// Dial opens the persistent websocket to a target's debugger URL. It fails
// immediately (wrapping ErrConnect) when the endpoint is unreachable; there
// is no lazy connect.
func Dial(ctx context.Context, wsURL string, logger *zap.Logger, opts ...DialOption) (*Channel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ErrConnect, wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	id := uuid.NewString()
	ch := &Channel{
		id:     id,
		conn:   conn,
		logger: logger.Named("cdp").With(zap.String("channel_id", id)),
	}
	for _, opt := range opts {
		opt(ch)
	}
	ch.logger.Debug("debug channel opened", zap.String("url", wsURL))
	return ch, nil
}

// ID returns the channel's correlation id used in logs.
func (c *Channel) ID() string { return c.id }

// IsAlive reports whether the underlying connection is still open.
func (c *Channel) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close tears down the websocket. Idempotent.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.closeErr = c.conn.Close()
		c.logger.Debug("debug channel closed")
	})
	return c.closeErr
}

// RunCommand sends one command and blocks until its response arrives.
// Responses whose id does not match the outstanding request are protocol
// events or stale replies; they are discarded and the read loop continues.
// The channel applies no timeout of its own: a ctx deadline, when present,
// is mapped onto the socket deadlines, and bounded retrying upstream is
// otherwise the only timeout mechanism. A transport failure mid-wait
// surfaces as *ProtocolError.
func (c *Channel) RunCommand(ctx context.Context, cmd Command) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, err
		}
	}

	// A ctx deadline, if any, bounds both the write and the read wait.
	// The zero time clears any deadline left over from a previous call.
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	cmd.ID = requestID
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, &ProtocolError{Op: "encode", Err: err}
	}
	c.logger.Debug("sending command", zap.String("method", cmd.Method))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, &ProtocolError{Op: "send", Err: err}
	}

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return nil, &ProtocolError{Op: "receive", Err: err}
		}

		var resp Response
		if err := json.Unmarshal(frame, &resp); err != nil {
			return nil, &ProtocolError{Op: "decode", Err: err}
		}
		if resp.ID != requestID {
			// Unsolicited event or mismatched reply; keep waiting.
			c.logger.Debug("discarding non-matching frame", zap.Int("frame_id", resp.ID))
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return &resp, nil
	}
}
