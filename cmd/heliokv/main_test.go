package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ASHISH26940/heliokv/internal/config"
)

func TestLoadConfig(t *testing.T) {
	// --- Test Case 1: Defaults without a file ---
	cfg, err := loadConfig("", 0, "")
	if err != nil {
		t.Fatalf("expected defaults to load, got %v", err)
	}
	if cfg.Port != 8080 || cfg.Engine != config.EngineLocal {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	// --- Test Case 2: Flags override the file ---
	path := filepath.Join(t.TempDir(), "heliokv.toml")
	if err := os.WriteFile(path, []byte("port = 9000\nengine = \"local\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err = loadConfig(path, 9500, "raft")
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.Port != 9500 || cfg.Engine != config.EngineRaft {
		t.Errorf("expected flag overrides, got port=%d engine=%s", cfg.Port, cfg.Engine)
	}

	// --- Test Case 3: Invalid override is rejected ---
	if _, err := loadConfig("", 0, "bolt"); err == nil {
		t.Error("expected an error for an unknown engine")
	}
}
