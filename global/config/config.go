package config

import (
	"os"
	"strconv"
	"time"

	"GProject/logger"
	ids "GProject/tools/ids"
)

// Global holds the process-wide gateway configuration. Defaults cover local
// development; LoadEnv applies environment overrides on top.
var Global = AppConfig{
	NodeID:            "msg_gw-1",
	Addr:              ":8080",
	WSPath:            "/ws",
	MaxFrameBytes:     100 << 20, // bound per-connection memory against oversized payloads
	HeartbeatInterval: 30 * time.Second,
	WriteTimeout:      5 * time.Second,
	UnauthKickAfter:   0, // disabled: unauthenticated sockets are only reaped by heartbeat
	PresenceTTL:       300 * time.Second,
	RedisDB:           0,
}

func ConfigIds() {
	logger.Infof("configuring id generator node=%d", 100)
	ids.SetNodeID(100)
}

// LoadEnv overrides Global from the environment. Unset variables keep defaults.
func LoadEnv() {
	if v := os.Getenv("GATEWAY_ID"); v != "" {
		Global.NodeID = v
	}
	if v := os.Getenv("GATEWAY_ADDR"); v != "" {
		Global.Addr = v
	}
	if v := os.Getenv("WS_PATH"); v != "" {
		Global.WSPath = v
	}
	if v := os.Getenv("WS_MAX_FRAME_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			Global.MaxFrameBytes = n
		} else {
			logger.Warnf("invalid WS_MAX_FRAME_BYTES=%q, keeping %d", v, Global.MaxFrameBytes)
		}
	}
	if v := os.Getenv("WS_HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			Global.HeartbeatInterval = d
		} else {
			logger.Warnf("invalid WS_HEARTBEAT_INTERVAL=%q, keeping %s", v, Global.HeartbeatInterval)
		}
	}
	if v := os.Getenv("WS_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			Global.WriteTimeout = d
		} else {
			logger.Warnf("invalid WS_WRITE_TIMEOUT=%q, keeping %s", v, Global.WriteTimeout)
		}
	}
	if v := os.Getenv("WS_UNAUTH_KICK_AFTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			Global.UnauthKickAfter = d
		}
	}
	Global.RedisAddr = os.Getenv("REDIS_ADDR")
	Global.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			Global.RedisDB = n
		}
	}
	Global.NatsURL = os.Getenv("NATS_URL")
}
