// Package redact keeps credentials out of log output. A Redactor knows the
// API key formats of the supported providers plus the literal secrets that
// modules report while provisioning; Handler applies it to every slog
// record.
package redact

import (
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/flemzord/chatmem/internal/core"
)

// Placeholder replaces every redacted secret.
const Placeholder = "***REDACTED***"

// Service is the service name of the process-wide *Redactor.
const Service = "log.redactor"

// Redactor replaces secrets in strings. It is safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// New creates a Redactor loaded with DefaultPatterns.
func New() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// DefaultPatterns returns patterns for the key formats chatmem handles:
// OpenAI and Anthropic API keys and bearer credentials.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Anthropic first so the whole key goes, not just its sk- prefix.
		regexp.MustCompile(`sk-ant-[A-Za-z0-9_\-]{20,}`),
		regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9_\-]{20,}`),
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/\-]{8,}=*`),
	}
}

// AddPattern adds a pattern to redact.
func (r *Redactor) AddPattern(p *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, p)
}

// AddLiteral registers a secret value. Empty and duplicate values are
// ignored. Longer literals are replaced first so that a secret containing
// another is not left half redacted.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.literals, secret) {
		return
	}
	r.literals = append(r.literals, secret)
	slices.SortFunc(r.literals, func(a, b string) int { return len(b) - len(a) })
}

// Redact returns s with every known secret replaced by Placeholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, Placeholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	return s
}

// AddSecret reports a secret to the redactor published on ctx, if any.
// Modules call it from Provision with the credentials they resolve.
func AddSecret(ctx *core.AppContext, secrets ...string) {
	r, ok := core.ServiceAs[*Redactor](ctx, Service)
	if !ok {
		return
	}
	for _, s := range secrets {
		r.AddLiteral(s)
	}
}
