package memory

import (
	"context"
	"time"

	"github.com/flemzord/chatmem/internal/provider"
)

// MessageRecord is a message as seen by indexers and durable stores.
type MessageRecord struct {
	OwnerID   string
	SessionID string
	Role      provider.MessageRole
	Content   string
	CreatedAt time.Time
}

// SearchQuery scopes a relevance search. Empty scope fields match all.
type SearchQuery struct {
	Text      string
	OwnerID   string
	SessionID string
	Role      provider.MessageRole
	Limit     int
}

// SearchResult is one relevance-ranked message.
type SearchResult struct {
	Content   string               `json:"content"`
	Role      provider.MessageRole `json:"role"`
	SessionID string               `json:"session_id"`
	Timestamp time.Time            `json:"timestamp"`
	Score     float64              `json:"score"`
}

// Searcher retrieves older messages relevant to a query.
// Implementations must be safe for concurrent use.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]SearchResult, error)
}

// Indexer is implemented by searchers that learn messages as they are
// appended.
type Indexer interface {
	Index(ctx context.Context, rec MessageRecord) error
}
