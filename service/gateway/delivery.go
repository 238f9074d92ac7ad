package gateway

import (
	"GProject/logger"
)

// Delivery API. Both operations are best-effort and fire-and-forget: a failed
// send is logged and swallowed, and never evicts a registry entry — removal
// belongs to the close path, not to delivery.

// Broadcast sends {type, ...payload} to every registered connection.
// Unauthenticated sockets never receive broadcasts because only authenticated
// connections are registered. Delivery order across recipients is unspecified.
func (s *Server) Broadcast(eventType string, payload map[string]any) {
	data, err := BuildEvent(eventType, payload)
	if err != nil {
		logger.Errorf("[broadcast] build envelope type=%s: %v", eventType, err)
		return
	}
	conns := s.mgr.Authorized()
	for _, c := range conns {
		if err := c.WriteRaw(data); err != nil {
			logger.Infof("[broadcast] send failed snowID=%s user=%s: %v", c.SnowID, c.User(), err)
		}
	}
}

// Notify sends {type, ...payload} to the single registered connection for
// userID. No registered connection is a silent no-op: no queuing, no error
// surfaced to the caller.
func (s *Server) Notify(userID, eventType string, payload map[string]any) {
	c, ok := s.mgr.Get(userID)
	if !ok {
		return
	}
	data, err := BuildEvent(eventType, payload)
	if err != nil {
		logger.Errorf("[notify] build envelope type=%s user=%s: %v", eventType, userID, err)
		return
	}
	if err := c.WriteRaw(data); err != nil {
		logger.Infof("[notify] send failed snowID=%s user=%s: %v", c.SnowID, userID, err)
	}
}
