package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// ConnManager is the session registry: every live socket indexed by snowID,
// and at most one *authenticated* connection per user id. It is the single
// resource shared by all connection goroutines, so every access goes through
// the RWMutex; sockets are never written while the lock is held.
type ConnManager struct {
	mu     sync.RWMutex
	bySnow map[string]*WsConn // all live connections
	byUser map[string]*WsConn // authenticated only, last-authenticated-wins

	gwID string
}

func NewConnManager(gwID string) *ConnManager {
	return &ConnManager{
		bySnow: make(map[string]*WsConn),
		byUser: make(map[string]*WsConn),
		gwID:   gwID,
	}
}

func (m *ConnManager) GwID() string { return m.gwID }

// AddUnauth registers a freshly upgraded socket before any identity is known.
func (m *ConnManager) AddUnauth(c *WsConn) error {
	if c == nil || c.SnowID == "" {
		return errors.New("snowID/conn empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySnow[c.SnowID]; exists {
		return errors.New("snowID exists")
	}
	m.bySnow[c.SnowID] = c
	return nil
}

// BindUser binds an unauthenticated connection to a user identity. A user that
// is already registered gets overwritten: the newest authentication wins and
// the previous socket stays open but unregistered.
func (m *ConnManager) BindUser(snowID, user, role string) (*WsConn, error) {
	if snowID == "" || user == "" {
		return nil, errors.New("snowID/user empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.bySnow[snowID]
	if !ok || c.Conn == nil {
		return nil, errors.New("snowID not found")
	}
	// re-auth under a different identity releases the old index entry
	if prev := c.User(); prev != "" && prev != user {
		if cur, ok := m.byUser[prev]; ok && cur == c {
			delete(m.byUser, prev)
		}
	}
	c.setIdentity(user, role)
	m.byUser[user] = c
	return c, nil
}

// Get returns the registered connection for a user, if any.
func (m *ConnManager) Get(user string) (*WsConn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byUser[user]
	return c, ok
}

// Remove drops a connection from both indexes. The user entry is only removed
// when it still points at this exact record, so closing an old socket never
// evicts a newer session for the same user. Returns the user id whose registry
// entry was owned by this connection, or "".
func (m *ConnManager) Remove(c *WsConn) string {
	if c == nil {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.bySnow[c.SnowID]; ok && cur == c {
		delete(m.bySnow, c.SnowID)
	}
	if user := c.User(); user != "" {
		if cur, ok := m.byUser[user]; ok && cur == c {
			delete(m.byUser, user)
			return user
		}
	}
	return ""
}

// Count is the number of registered (authenticated) users.
func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser)
}

// ConnCount is the number of live sockets, authenticated or not.
func (m *ConnManager) ConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySnow)
}

// Authorized snapshots the registered connections so callers can fan out
// without holding the lock during socket writes.
func (m *ConnManager) Authorized() []*WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*WsConn, 0, len(m.byUser))
	for _, c := range m.byUser {
		out = append(out, c)
	}
	return out
}

// KickStaleUnauth terminates connections that never authenticated within
// maxAge. Collect under the lock, close outside it.
func (m *ConnManager) KickStaleUnauth(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-maxAge)

	var stale []*WsConn
	m.mu.Lock()
	for sid, c := range m.bySnow {
		if c.User() == "" && c.CreatedAt.Before(cutoff) {
			delete(m.bySnow, sid)
			stale = append(stale, c)
		}
	}
	m.mu.Unlock()

	for _, c := range stale {
		c.Terminate()
	}
	return len(stale)
}

// Close terminates every live connection. Used on shutdown.
func (m *ConnManager) Close() {
	m.mu.Lock()
	conns := make([]*WsConn, 0, len(m.bySnow))
	for _, c := range m.bySnow {
		conns = append(conns, c)
	}
	m.bySnow = make(map[string]*WsConn)
	m.byUser = make(map[string]*WsConn)
	m.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
}
