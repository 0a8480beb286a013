package config

import (
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":4000" {
		t.Fatalf("HTTPAddr = %q, want :4000", cfg.HTTPAddr)
	}
	if cfg.AmbientSyncInterval != 5*time.Second {
		t.Fatalf("AmbientSyncInterval = %v, want 5s", cfg.AmbientSyncInterval)
	}
	if cfg.HistoryDBPath != "" {
		t.Fatalf("HistoryDBPath = %q, want empty", cfg.HistoryDBPath)
	}
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("AMBIENT_SYNC_INTERVAL", "2s")
	t.Setenv("HISTORY_DB_PATH", "/tmp/history.db")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.AmbientSyncInterval != 2*time.Second {
		t.Fatalf("AmbientSyncInterval = %v", cfg.AmbientSyncInterval)
	}
	if cfg.HistoryDBPath != "/tmp/history.db" {
		t.Fatalf("unexpected server config: %+v", cfg)
	}
}
