//go:build integration

package openai

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/provider"
)

// Run with OPENAI_API_KEY set; OPENAI_BASE_URL and OPENAI_MODEL select an
// OpenAI-compatible endpoint instead.
//
//	go test -tags=integration ./modules/provider/openai/...

func TestIntegration_SummarizesThroughChain(t *testing.T) {
	p := liveProvider(t)
	chain, err := provider.NewChain([]provider.ChainEntry{{Name: "openai", Provider: p}})
	if err != nil {
		t.Fatal(err)
	}
	summarizer := ctxengine.NewLLMSummarizer(&provider.ChainGenerator{Chain: chain})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	summary, err := summarizer.Summarize(ctx, "", []provider.LLMMessage{
		{Role: provider.MessageRoleUser, Content: "My staging database runs Postgres 16 on port 5433."},
		{Role: provider.MessageRoleAssistant, Content: "Noted: Postgres 16, listening on 5433."},
	})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !strings.Contains(summary, "5433") {
		t.Errorf("summary lost the port: %q", summary)
	}
}

func TestIntegration_HealthAndUnknownModel(t *testing.T) {
	p := liveProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	p.config.Model = "chatmem-no-such-model"
	if err := p.HealthCheck(ctx); !errors.Is(err, provider.ErrProviderDown) {
		t.Errorf("HealthCheck with an unserved model = %v, want ErrProviderDown", err)
	}
}

func liveProvider(t *testing.T) *Provider {
	t.Helper()
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	cfg := "api_key: " + apiKey + "\nmodel: " + model + "\ncontext_window: 128000"
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cfg += "\nbase_url: " + base
	}

	p := &Provider{}
	if err := p.Configure(yamlNode(t, cfg)); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := p.Provision(core.NewAppContext(nil, t.TempDir())); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return p
}
