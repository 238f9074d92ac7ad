package gateway

import (
	"net"
	"net/http"
	"time"

	"GProject/logger"
	storage "GProject/service/storage"
	ids "GProject/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ===== 配置 =====

type Config struct {
	MaxFrameBytes     int64         // transport read limit (default 100MB)
	HeartbeatInterval time.Duration // ping probe interval (default 30s)
	WriteTimeout      time.Duration // per-write deadline (default 5s)
	UnauthKickAfter   time.Duration // sweep sockets that never authenticate; 0 disables
	PresenceTTL       time.Duration // redis presence ttl (default 300s)
	SweepEvery        time.Duration // unauth sweep period (default 10s)
}

func (c *Config) norm() {
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = 100 << 20
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PresenceTTL <= 0 {
		c.PresenceTTL = 300 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
}

// Server is the gateway: upgrade front door, per-connection lifecycle and the
// delivery surface external collaborators call.
type Server struct {
	conf Config
	mgr  *ConnManager
	disp *Dispatcher

	onEvent func(userID string, f *Frame)

	stopCh chan struct{}
}

func NewServer(gwID string, conf Config) *Server {
	conf.norm()
	s := &Server{
		conf:   conf,
		mgr:    NewConnManager(gwID),
		disp:   NewDispatcher(),
		stopCh: make(chan struct{}),
	}
	s.disp.Register(NewAuthHandler())
	s.disp.Register(NewEventHandler())
	if conf.UnauthKickAfter > 0 {
		go s.unauthSweeper()
	}
	return s
}

func (s *Server) ConnMgr() *ConnManager { return s.mgr }

// OnEvent registers the application callback that receives post-auth frames.
// The gateway hands them off untouched.
func (s *Server) OnEvent(fn func(userID string, f *Frame)) { s.onEvent = fn }

// HandleWS ===== WebSocket 处理 =====
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Plain HTTP request or failed handshake; gin already wrote the status.
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	ws.SetReadLimit(s.conf.MaxFrameBytes)

	rec := newWsConn(ids.GenerateString(), ws, s.conf.WriteTimeout)
	logger.Infof("[HandleWS] connected snowID=%s remote=%s url=%s origin=%s",
		rec.SnowID, rec.Remote, c.Request.URL.String(), c.GetHeader("Origin"))

	if err := s.mgr.AddUnauth(rec); err != nil {
		logger.Errorf("[HandleWS] register conn snowID=%s: %v", rec.SnowID, err)
		closeQuiet(ws)
		return
	}
	rec.setState(StateUnauthenticated)

	closeCode := websocket.CloseNormalClosure
	defer func() { s.teardown(rec, closeCode, "") }()

	if err := rec.WriteRaw(BuildConnectionEstablished(rec.SnowID)); err != nil {
		logger.Infof("[HandleWS] established ack failed snowID=%s: %v", rec.SnowID, err)
		s.closeWith(rec, CloseInternalError, "internal error")
		return
	}

	ws.SetPongHandler(func(string) error {
		rec.alive.Store(true)
		return nil
	})
	go s.runHeartbeat(rec)

	// ---- read loop: frames processed strictly in arrival order ----
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			closeCode = closeCodeForReadError(rerr)
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed snowID=%s err=%v", rec.SnowID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout snowID=%s err=%v", rec.SnowID, rerr)
			} else {
				logger.Infof("[WS] read err snowID=%s user=%s err=%v", rec.SnowID, rec.User(), rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			// Protocol error: reply ERROR and keep the connection open.
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[WS] ParseFrame err snowID=%s err=%v sample=%q len=%d",
				rec.SnowID, perr, sample, len(data))
			s.sendError(rec, "Invalid JSON message")
			continue
		}

		h := s.disp.GetHandler(frame.Kind)
		if h == nil {
			continue
		}
		if err := h.Handle(s, frame, rec); err != nil {
			logger.Infof("[WS] handler err snowID=%s type=%s: %v", rec.SnowID, frame.Type, err)
		}
		if rec.State() == StateClosed {
			return
		}
	}
}

// HandleHealth reports liveness plus the registered-connection count.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.mgr.Count(),
	})
}

// sendError pushes an ERROR envelope, best-effort. A failed error-send must
// not take the handler down with it.
func (s *Server) sendError(c *WsConn, msg string) {
	if err := c.WriteRaw(BuildErrorFrame(msg)); err != nil {
		logger.Infof("[WS] error-send failed snowID=%s: %v", c.SnowID, err)
	}
}

// closeWith removes the connection from the registry and closes it with the
// given code. Safe to call multiple times and safe to race the read-loop's
// deferred teardown.
func (s *Server) closeWith(c *WsConn, code int, reason string) {
	owned := s.mgr.Remove(c)
	c.Close(code, reason)
	s.presenceOffline(owned)
}

func (s *Server) teardown(c *WsConn, code int, reason string) {
	s.closeWith(c, code, reason)
	logger.Infof("[WS] closed snowID=%s user=%s state=%s", c.SnowID, c.User(), c.State())
}

// closeCodeForReadError maps a read-loop error to the close code for teardown.
// A clean peer close keeps the normal code; anything else is a socket error
// and the gateway closes with its application-error code.
func closeCodeForReadError(err error) int {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return websocket.CloseNormalClosure
	}
	return CloseInternalError
}

// ===== presence mirror (optional, redis) =====

func (s *Server) presenceOnline(user string) {
	if !storage.Ready() {
		return
	}
	if err := storage.PresenceOnline(user, s.mgr.GwID(), s.conf.PresenceTTL); err != nil {
		logger.Infof("[presence] online user=%s: %v", user, err)
	}
}

func (s *Server) presenceOffline(user string) {
	if user == "" || !storage.Ready() {
		return
	}
	if err := storage.PresenceOffline(user); err != nil {
		logger.Infof("[presence] offline user=%s: %v", user, err)
	}
}

// ===== unauth sweeper =====

func (s *Server) unauthSweeper() {
	t := time.NewTicker(s.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			if n := s.mgr.KickStaleUnauth(s.conf.UnauthKickAfter); n > 0 {
				logger.Infof("[sweep] kicked %d stale unauth conns", n)
			}
		}
	}
}

// Close stops background work and drops every live connection.
func (s *Server) Close() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.mgr.Close()
}
