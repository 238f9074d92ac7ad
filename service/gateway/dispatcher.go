package gateway

import (
	"GProject/logger"

	"github.com/gorilla/websocket"
)

// Handler processes one kind of inbound frame.
type Handler interface {
	Kind() FrameKind
	Handle(s *Server, f *Frame, c *WsConn) error
}

type Dispatcher struct {
	handlers map[FrameKind]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[FrameKind]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Kind()] = h }

func (d *Dispatcher) GetHandler(kind FrameKind) Handler {
	h, ok := d.handlers[kind]
	if !ok {
		logger.Infof("no handler for kind=%v", kind)
		return nil
	}
	return h
}

// ===== AUTH =====

// AuthHandler performs identity binding. No credential is checked: the
// handshake binds whatever userId the client asserts, registers the connection
// and acks. Collaborators rely on "registered => previously authenticated".
type AuthHandler struct{}

func NewAuthHandler() Handler          { return &AuthHandler{} }
func (h *AuthHandler) Kind() FrameKind { return KindAuth }

func (h *AuthHandler) Handle(s *Server, f *Frame, c *WsConn) error {
	ap, err := f.AuthPayload()
	if err != nil {
		logger.Infof("[auth] extract payload err snowID=%s: %v", c.SnowID, err)
		s.sendError(c, "Invalid JSON message")
		return nil
	}
	if ap.UserID == "" {
		logger.Infof("[auth] skip, empty userId snowID=%s", c.SnowID)
		s.sendError(c, "userId is required")
		return nil
	}

	if _, err := s.mgr.BindUser(c.SnowID, ap.UserID, ap.Role); err != nil {
		// Connection raced its own teardown; nothing to bind to.
		logger.Infof("[auth] bind user err snowID=%s user=%s: %v", c.SnowID, ap.UserID, err)
		return nil
	}
	c.setState(StateAuthenticated)

	s.presenceOnline(ap.UserID)

	if err := c.WriteRaw(BuildAuthSuccess(ap.UserID, ap.Role)); err != nil {
		logger.Infof("[auth] ack send failed snowID=%s user=%s: %v", c.SnowID, ap.UserID, err)
	}
	logger.Infof("[auth] bound snowID=%s user=%s role=%s", c.SnowID, ap.UserID, ap.Role)
	return nil
}

// ===== application events =====

// EventHandler enforces the auth-first policy and hands authenticated traffic
// to the application callback. The gateway reads nothing beyond the type field.
type EventHandler struct{}

func NewEventHandler() Handler          { return &EventHandler{} }
func (h *EventHandler) Kind() FrameKind { return KindEvent }

func (h *EventHandler) Handle(s *Server, f *Frame, c *WsConn) error {
	if c.State() != StateAuthenticated {
		// Policy violation: one ERROR envelope, then force-close 1008. Hard
		// rule; no application message reaches collaborators before AUTH.
		s.sendError(c, "Authentication required")
		s.closeWith(c, websocket.ClosePolicyViolation, "authentication required")
		return nil
	}
	if cb := s.onEvent; cb != nil {
		cb(c.User(), f)
		return nil
	}
	logger.Debugf("[event] no consumer registered, drop type=%s user=%s", f.Type, c.User())
	return nil
}
