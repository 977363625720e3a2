package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "release" {
		t.Errorf("mode %q", cfg.Mode)
	}
	if cfg.Port != 8080 {
		t.Errorf("port %d", cfg.Port)
	}
	if cfg.PushBuffer != 32 {
		t.Errorf("push_buffer %d", cfg.PushBuffer)
	}
	if cfg.HeartbeatPeriod != 25*time.Second {
		t.Errorf("heartbeat_period %v", cfg.HeartbeatPeriod)
	}
	if cfg.DisconnectGrace != 30*time.Second {
		t.Errorf("disconnect_grace %v", cfg.DisconnectGrace)
	}
	if cfg.Directory != "memory" {
		t.Errorf("directory %q", cfg.Directory)
	}
}
