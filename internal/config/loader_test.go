package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("CHATMEM_TEST_KEY", "sk-123")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "set", input: "key: ${CHATMEM_TEST_KEY}", want: "key: sk-123"},
		{name: "default_unused", input: "key: ${CHATMEM_TEST_KEY:-fallback}", want: "key: sk-123"},
		{name: "default", input: "addr: ${CHATMEM_TEST_UNSET:-:8080}", want: "addr: :8080"},
		{name: "empty_default", input: "x: ${CHATMEM_TEST_UNSET:-}", want: "x: "},
		{name: "plain", input: "no variables here", want: "no variables here"},
		{name: "unresolved", input: "a: ${CHATMEM_MISSING_ONE} b: ${CHATMEM_MISSING_TWO}", wantErr: "CHATMEM_MISSING_TWO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnv([]byte(tt.input))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want mention of %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("expandEnv = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("CHATMEM_TEST_TOKEN", "secret")

	path := filepath.Join(t.TempDir(), "chatmem.yaml")
	raw := `
version: "1"
log_level: debug
modules:
  memory.engine:
    recent_window: 6
  gateway.http:
    bind: ":8080"
    auth:
      bearer_token: ${CHATMEM_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Version != "1" || cfg.LogLevel != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want default %q", cfg.DataDir, DefaultDataDir)
	}
	if len(cfg.Modules) != 2 {
		t.Fatalf("len(Modules) = %d, want 2", len(cfg.Modules))
	}

	var gw struct {
		Auth struct {
			BearerToken string `yaml:"bearer_token"`
		} `yaml:"auth"`
	}
	node := cfg.Modules["gateway.http"]
	if err := node.Decode(&gw); err != nil {
		t.Fatal(err)
	}
	if gw.Auth.BearerToken != "secret" {
		t.Errorf("bearer_token = %q, want expanded value", gw.Auth.BearerToken)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := Parse([]byte("version: [")); err == nil {
		t.Error("expected error for invalid YAML")
	}
	if _, err := Parse([]byte("key: ${CHATMEM_NEVER_SET_VAR}")); err == nil {
		t.Error("expected error for an unresolved variable")
	}
}
