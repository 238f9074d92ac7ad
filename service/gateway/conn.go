package gateway

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Close codes beyond the RFC-defined range used by the gateway.
const (
	// CloseInternalError is sent when the gateway force-closes after an
	// internal socket error.
	CloseInternalError = 4000
)

// ConnState tracks the lifecycle of a single socket.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateUnauthenticated
	StateAuthenticated
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAuthenticated:
		return "Authenticated"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ===== 数据结构 =====

// WsConn is the per-socket record: identity, liveness and lifecycle state for
// one live transport connection.
type WsConn struct {
	SnowID string // connection id, logging/correlation only

	idMu   sync.RWMutex
	userID string // set on successful AUTH
	role   string // client-asserted, not verified

	Conn   *websocket.Conn
	Remote net.Addr

	CreatedAt time.Time

	state atomic.Int32
	alive atomic.Bool // reset by the heartbeat probe, set by pong receipt

	writeMu      sync.Mutex // outbound sends preserve call order
	writeTimeout time.Duration

	done      chan struct{} // closed exactly once on teardown; stops the heartbeat
	closeOnce sync.Once
}

func newWsConn(snowID string, conn *websocket.Conn, writeTimeout time.Duration) *WsConn {
	c := &WsConn{
		SnowID:       snowID,
		Conn:         conn,
		CreatedAt:    time.Now(),
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
	if ra := conn.RemoteAddr(); ra != nil {
		c.Remote = ra
	}
	c.state.Store(int32(StateConnecting))
	c.alive.Store(true)
	return c
}

func (c *WsConn) State() ConnState     { return ConnState(c.state.Load()) }
func (c *WsConn) setState(s ConnState) { c.state.Store(int32(s)) }

// User returns the bound user id, or "" before authentication. Identity is
// written by BindUser while heartbeat and delivery goroutines read it, hence
// the lock.
func (c *WsConn) User() string {
	c.idMu.RLock()
	defer c.idMu.RUnlock()
	return c.userID
}

// Identity returns the bound user id and role.
func (c *WsConn) Identity() (user, role string) {
	c.idMu.RLock()
	defer c.idMu.RUnlock()
	return c.userID, c.role
}

func (c *WsConn) setIdentity(user, role string) {
	c.idMu.Lock()
	c.userID = user
	c.role = role
	c.idMu.Unlock()
}

// WriteRaw sends one text frame with a write deadline. Writes are serialized
// per connection; gorilla conns allow only one concurrent writer.
func (c *WsConn) WriteRaw(data []byte) error {
	if c.Conn == nil {
		return errors.New("nil conn")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.State() >= StateClosing {
		return errors.New("conn closed")
	}
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Close performs a graceful close: close frame with the given code, then the
// underlying socket. Idempotent; repeated calls are no-ops.
func (c *WsConn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.setState(StateClosing)
		close(c.done)
		deadline := time.Now().Add(c.writeTimeout)
		_ = c.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.Conn.Close()
		c.setState(StateClosed)
	})
}

// Terminate drops the socket without a close handshake. Used when the peer is
// already presumed dead (missed heartbeat), where a close frame would only
// block on a broken pipe.
func (c *WsConn) Terminate() {
	c.closeOnce.Do(func() {
		c.setState(StateClosing)
		close(c.done)
		_ = c.Conn.Close()
		c.setState(StateClosed)
	})
}

func closeQuiet(c *websocket.Conn) {
	if c != nil {
		_ = c.Close()
	}
}
