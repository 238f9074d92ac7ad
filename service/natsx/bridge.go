package natsx

import (
	"encoding/json"
	"strings"
	"time"

	"GProject/logger"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// Subjects the bridge consumes. Collaborators in other processes publish JSON
// envelopes here instead of linking the gateway:
//
//	gateway.broadcast        {"type": "...", ...payload}  -> Broadcast
//	gateway.notify.<userId>  {"type": "...", ...payload}  -> Notify(userId, ...)
//
// Core NATS only: delivery through the bridge is as best-effort as the
// gateway's own delivery, and undelivered events are not persisted.
const (
	SubjectBroadcast  = "gateway.broadcast"
	SubjectNotifyWild = "gateway.notify.*"
	notifyPrefix      = "gateway.notify."
)

// Delivery is the gateway surface the bridge feeds.
type Delivery interface {
	Broadcast(eventType string, payload map[string]any)
	Notify(userID, eventType string, payload map[string]any)
}

// Config 客户端配置
type Config struct {
	URL           string
	Name          string
	Queue         string // queue group so multiple bridge workers share load
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func (c *Config) norm() {
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 500 * time.Millisecond
	}
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
	if c.Queue == "" {
		c.Queue = "gateway-ingest"
	}
}

// Bridge subscribes collaborator subjects and forwards envelopes into the
// Delivery API.
type Bridge struct {
	nc   *nats.Conn
	subs []*nats.Subscription
	gw   Delivery
}

// Start connects and subscribes. Returns an error when NATS is unreachable;
// the gateway runs fine without the bridge.
func Start(cfg Config, gw Delivery) (*Bridge, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url missing")
	}
	cfg.norm()

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warnf("[natsx] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("[natsx] reconnected to %s", c.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}

	b := &Bridge{nc: nc, gw: gw}

	sub, err := nc.QueueSubscribe(SubjectBroadcast, cfg.Queue, b.handleBroadcast)
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "subscribe broadcast")
	}
	b.subs = append(b.subs, sub)

	sub, err = nc.QueueSubscribe(SubjectNotifyWild, cfg.Queue, b.handleNotify)
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "subscribe notify")
	}
	b.subs = append(b.subs, sub)

	logger.Infof("[natsx] ingest bridge up url=%s queue=%s", cfg.URL, cfg.Queue)
	return b, nil
}

func (b *Bridge) handleBroadcast(m *nats.Msg) {
	eventType, payload, err := decodeEnvelope(m.Data)
	if err != nil {
		logger.Infof("[natsx] bad broadcast envelope: %v", err)
		return
	}
	b.gw.Broadcast(eventType, payload)
}

func (b *Bridge) handleNotify(m *nats.Msg) {
	user := strings.TrimPrefix(m.Subject, notifyPrefix)
	if user == "" || strings.Contains(user, ".") {
		logger.Infof("[natsx] bad notify subject %q", m.Subject)
		return
	}
	eventType, payload, err := decodeEnvelope(m.Data)
	if err != nil {
		logger.Infof("[natsx] bad notify envelope user=%s: %v", user, err)
		return
	}
	b.gw.Notify(user, eventType, payload)
}

// decodeEnvelope splits {"type": t, ...payload} into its type and the
// remaining fields.
func decodeEnvelope(data []byte) (string, map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, errors.Wrap(err, "unmarshal envelope")
	}
	t, ok := fields["type"].(string)
	if !ok || t == "" {
		return "", nil, errors.New("envelope missing type field")
	}
	delete(fields, "type")
	return t, fields, nil
}

// Close drains subscriptions and drops the connection.
func (b *Bridge) Close() {
	for _, s := range b.subs {
		_ = s.Unsubscribe()
	}
	b.nc.Close()
}
