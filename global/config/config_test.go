package config

import (
	"testing"
	"time"
)

func TestLoadEnvOverrides(t *testing.T) {
	saved := Global
	t.Cleanup(func() { Global = saved })

	t.Setenv("GATEWAY_ID", "gw-42")
	t.Setenv("GATEWAY_ADDR", ":9090")
	t.Setenv("WS_PATH", "/socket")
	t.Setenv("WS_MAX_FRAME_BYTES", "1048576")
	t.Setenv("WS_HEARTBEAT_INTERVAL", "10s")
	t.Setenv("WS_WRITE_TIMEOUT", "9s")
	t.Setenv("WS_UNAUTH_KICK_AFTER", "1m")

	LoadEnv()

	if Global.NodeID != "gw-42" {
		t.Errorf("NodeID = %q, want gw-42", Global.NodeID)
	}
	if Global.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", Global.Addr)
	}
	if Global.WSPath != "/socket" {
		t.Errorf("WSPath = %q, want /socket", Global.WSPath)
	}
	if Global.MaxFrameBytes != 1<<20 {
		t.Errorf("MaxFrameBytes = %d, want %d", Global.MaxFrameBytes, 1<<20)
	}
	if Global.HeartbeatInterval != 10*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 10s", Global.HeartbeatInterval)
	}
	if Global.WriteTimeout != 9*time.Second {
		t.Errorf("WriteTimeout = %s, want 9s", Global.WriteTimeout)
	}
	if Global.UnauthKickAfter != time.Minute {
		t.Errorf("UnauthKickAfter = %s, want 1m", Global.UnauthKickAfter)
	}
}

func TestLoadEnvInvalidValuesKeepDefaults(t *testing.T) {
	saved := Global
	t.Cleanup(func() { Global = saved })

	t.Setenv("WS_MAX_FRAME_BYTES", "not-a-number")
	t.Setenv("WS_HEARTBEAT_INTERVAL", "soon")
	t.Setenv("WS_WRITE_TIMEOUT", "-3s")

	LoadEnv()

	if Global.MaxFrameBytes != saved.MaxFrameBytes {
		t.Errorf("MaxFrameBytes = %d, want default %d", Global.MaxFrameBytes, saved.MaxFrameBytes)
	}
	if Global.HeartbeatInterval != saved.HeartbeatInterval {
		t.Errorf("HeartbeatInterval = %s, want default %s", Global.HeartbeatInterval, saved.HeartbeatInterval)
	}
	if Global.WriteTimeout != saved.WriteTimeout {
		t.Errorf("WriteTimeout = %s, want default %s", Global.WriteTimeout, saved.WriteTimeout)
	}
}
