package gateway

import (
	"time"

	"GProject/logger"

	"github.com/gorilla/websocket"
)

// runHeartbeat owns the liveness probe for one connection. Each tick: a peer
// that never answered the previous ping is terminated without further
// handshake; otherwise the alive flag flips down and a ping goes out. The pong
// handler flips it back up, so dead-peer detection lands between one and two
// intervals. The ticker stops when the connection's done channel closes, which
// happens exactly once on teardown.
func (s *Server) runHeartbeat(c *WsConn) {
	t := time.NewTicker(s.conf.HeartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if !c.alive.Swap(false) {
				s.reap(c, "no pong")
				return
			}
			deadline := time.Now().Add(s.conf.WriteTimeout)
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Infof("[heartbeat] ping failed snowID=%s err=%v", c.SnowID, err)
				s.reap(c, "ping failed")
				return
			}
		}
	}
}

// reap removes a presumed-dead connection: registry entry out first, then a
// hard terminate (no close frame; the peer is gone). The user id is taken
// from the registry removal, which already resolved it under the lock.
func (s *Server) reap(c *WsConn, why string) {
	owned := s.mgr.Remove(c)
	logger.Infof("[heartbeat] reaping snowID=%s user=%s: %s", c.SnowID, owned, why)
	c.Terminate()
	s.presenceOffline(owned)
}
