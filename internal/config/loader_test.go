package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.MessageLimit != 100 || cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "addr: \":9000\"\nmessage_limit: 50\nstore_url: http://file.example\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ROOMCHAT_STORE_URL", "http://env.example")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("addr = %q, want file value", cfg.Addr)
	}
	if cfg.MessageLimit != 50 {
		t.Errorf("message_limit = %d, want file value", cfg.MessageLimit)
	}
	if cfg.StoreURL != "http://env.example" {
		t.Errorf("store_url = %q, want env value", cfg.StoreURL)
	}
	if cfg.JWTIssuer != "roomchat" {
		t.Errorf("jwt_issuer = %q, want default", cfg.JWTIssuer)
	}

	cfg.UpdateFrom(Config{LogLevel: "debug"})
	if cfg.LogLevel != "debug" || cfg.Addr != ":9000" {
		t.Errorf("UpdateFrom: %+v", cfg)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("addr: [unterminated\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := Load(nil, path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
