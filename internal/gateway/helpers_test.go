package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/internal/provider"
	"github.com/flemzord/chatmem/internal/telemetry"
)

// fakeProvider is a minimal test provider that optionally always fails.
type fakeProvider struct {
	name    string
	failErr error
}

func (p *fakeProvider) Complete(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
	if p.failErr != nil {
		return provider.CompletionResponse{}, p.failErr
	}
	return provider.CompletionResponse{Content: p.name}, nil
}

func (p *fakeProvider) ContextWindowSize() int { return 4096 }
func (p *fakeProvider) ModelName() string      { return p.name }

func (p *fakeProvider) HealthCheck(_ context.Context) error {
	return p.failErr
}

// newTestChain creates a Chain for testing.
func newTestChain(t *testing.T, entries []provider.ChainEntry) *provider.Chain {
	t.Helper()
	chain, err := provider.NewChain(entries)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	return chain
}

// newTestEngine builds an engine with a small window so overflow is easy
// to provoke.
func newTestEngine(t *testing.T) *memory.Engine {
	t.Helper()
	e, err := memory.New(memory.Config{
		Budget: ctxengine.BudgetConfig{MaxContextTokens: 1000, MaxOutputTokens: 200, BufferTokens: ctxengine.Tokens(50)},
	})
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	return e
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// newTestGateway returns a provisioned gateway bound to addr with the
// engine published in its service registry.
func newTestGateway(t *testing.T, addr string, auth AuthConfig) *Gateway {
	t.Helper()
	appCtx := core.NewAppContext(discardLogger(), t.TempDir())
	appCtx.RegisterService(telemetry.RegistryService, telemetry.NewRegistry())
	appCtx.RegisterService(memory.EngineService, newTestEngine(t))

	g := &Gateway{}
	g.config = Config{
		Bind:            addr,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 2 * time.Second,
		Auth:            auth,
	}
	if err := g.Provision(appCtx.ForModule(ModuleID)); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	return g
}

// newAPIServer serves the gateway router through httptest without going
// through Start.
func newAPIServer(t *testing.T, auth AuthConfig) (*Gateway, *httptest.Server) {
	t.Helper()
	g := newTestGateway(t, "127.0.0.1:0", auth)
	if !g.resolve() {
		t.Fatal("engine not resolved")
	}
	g.startedAt = time.Now()
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return g, srv
}

// do sends a JSON request and returns the response with its body read.
func do(t *testing.T, method, url, body string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

// mustYAMLNode parses YAML text into a *yaml.Node for Configure calls.
func mustYAMLNode(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		t.Fatalf("YAML parse: %v", err)
	}
	if len(node.Content) > 0 {
		return node.Content[0]
	}
	return &node
}
