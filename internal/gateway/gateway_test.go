package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/internal/provider"
	"github.com/flemzord/chatmem/internal/redact"
)

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	info := g.ModuleInfo()

	if info.ID != "gateway.http" {
		t.Errorf("ID = %q, want %q", info.ID, "gateway.http")
	}
	if info.New == nil {
		t.Fatal("New func is nil")
	}

	mod := info.New()
	if _, ok := mod.(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
}

func TestGateway_ConfigureDefaults(t *testing.T) {
	t.Parallel()

	g := &Gateway{}

	node := mustYAMLNode(t, "{}")
	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "127.0.0.1:8080" {
		t.Errorf("Bind = %q, want default", g.config.Bind)
	}
	if g.config.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want 10s", g.config.ReadTimeout)
	}
	if g.config.WriteTimeout != 60*time.Second {
		t.Errorf("WriteTimeout = %v, want 60s", g.config.WriteTimeout)
	}
	if g.config.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", g.config.ShutdownTimeout)
	}
	if g.config.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d, want 1MiB", g.config.MaxBodyBytes)
	}
}

func TestGateway_ConfigureCustom(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	node := mustYAMLNode(t, `
bind: "0.0.0.0:9090"
read_timeout: 5s
write_timeout: 15s
shutdown_timeout: 10s
max_body_bytes: 4096
auth:
  bearer_token: "my-token"
`)

	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "0.0.0.0:9090" {
		t.Errorf("Bind = %q, want custom", g.config.Bind)
	}
	if g.config.Auth.BearerToken != "my-token" {
		t.Errorf("BearerToken = %q", g.config.Auth.BearerToken)
	}
	if g.config.MaxBodyBytes != 4096 {
		t.Errorf("MaxBodyBytes = %d", g.config.MaxBodyBytes)
	}
}

func TestGateway_Provision(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	appCtx := core.NewAppContext(discardLogger(), t.TempDir())

	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if g.metrics == nil {
		t.Error("metrics should be initialized")
	}
	if _, ok := appCtx.Service("gateway.metrics"); !ok {
		t.Error("gateway.metrics not registered")
	}
}

func TestGateway_ProvisionRegistersSecrets(t *testing.T) {
	t.Parallel()

	r := redact.New()
	appCtx := core.NewAppContext(discardLogger(), t.TempDir())
	appCtx.RegisterService(redact.Service, r)

	g := &Gateway{}
	g.config.Auth = AuthConfig{BearerToken: "tok-123", BasicUser: "admin", BasicPass: "pw-456"}
	if err := g.Provision(appCtx); err != nil {
		t.Fatal(err)
	}
	if got := r.Redact("tok-123 pw-456 admin"); got != redact.Placeholder+" "+redact.Placeholder+" admin" {
		t.Errorf("Redact = %q", got)
	}
}

func TestGateway_ProvisionRejectsHalfBasicAuth(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	g.config.Auth.BasicUser = "admin"
	err := g.Provision(core.NewAppContext(discardLogger(), t.TempDir()))
	if err == nil || !strings.Contains(err.Error(), "basic_pass") {
		t.Errorf("err = %v, want basic auth error", err)
	}
}

func TestGateway_ValidateGoodAddress(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	g.config.Bind = "127.0.0.1:8080"
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestGateway_ValidateBadAddress(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	g.config.Bind = "not a valid address::"
	if err := g.Validate(); err == nil {
		t.Error("expected validation error for bad address")
	}
}

func TestIsLoopback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bind string
		want bool
	}{
		{"127.0.0.1:8080", true},
		{"localhost:8080", true},
		{"[::1]:8080", true},
		{"0.0.0.0:8080", false},
		{":8080", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := isLoopback(tt.bind); got != tt.want {
			t.Errorf("isLoopback(%q) = %v, want %v", tt.bind, got, tt.want)
		}
	}
}

// freeAddr returns a free TCP address on localhost.
func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

func TestGateway_StartStop(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	g := newTestGateway(t, addr, AuthConfig{})

	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, body := do(t, http.MethodGet, "http://"+addr+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health.Status = %q, want %q", health.Status, "ok")
	}

	if err := g.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestGateway_StartWithChain(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	g := newTestGateway(t, addr, AuthConfig{})
	g.appCtx.RegisterService(memory.ChainService, newTestChain(t, []provider.ChainEntry{
		{Name: "p1", Provider: &fakeProvider{name: "p1"}, Role: provider.RolePrimary},
	}))

	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = g.Stop(context.Background()) }()

	if _, err := g.engine.CreateSession(t.Context(), "u1", "s1"); err != nil {
		t.Fatal(err)
	}

	_, body := do(t, http.MethodGet, "http://"+addr+"/health", "", nil)
	var health HealthResponse
	decodeJSON(t, body, &health)
	if health.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", health.Sessions)
	}
	if len(health.Providers) != 1 {
		t.Errorf("providers = %d, want 1", len(health.Providers))
	}
}

func TestGateway_StartWithoutEngine(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	g.config.Bind = freeAddr(t)
	if err := g.Provision(core.NewAppContext(discardLogger(), t.TempDir())); err != nil {
		t.Fatal(err)
	}
	err := g.Start()
	if err == nil || !strings.Contains(err.Error(), memory.EngineService) {
		t.Errorf("err = %v, want missing engine", err)
	}
}

func TestGateway_StopNilServer(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Stop(context.Background()); err != nil {
		t.Errorf("Stop on nil server should not error: %v", err)
	}
}
