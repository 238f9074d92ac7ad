package config

import "time"

type AppConfig struct {
	NodeID string // gateway node id, used for presence values and logs

	Addr   string // http listen address
	WSPath string // websocket upgrade path

	MaxFrameBytes     int64         // transport read limit per connection
	HeartbeatInterval time.Duration // ping probe interval
	WriteTimeout      time.Duration // per-write deadline
	UnauthKickAfter   time.Duration // kick sockets that never authenticate; 0 disables

	RedisAddr     string // optional presence mirror
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration

	NatsURL string // optional event ingest bridge
}
