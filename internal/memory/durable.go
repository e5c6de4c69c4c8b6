package memory

import (
	"context"
	"time"

	"github.com/flemzord/chatmem/internal/provider"
)

// DurableStore rehydrates sessions across restarts.
// Implementations must be safe for concurrent use.
type DurableStore interface {
	// Restore returns the most recent messages of a session in
	// chronological order.
	Restore(ctx context.Context, sessionID, ownerID string) ([]provider.LLMMessage, error)

	// PersistCount records the number of messages ever added to a session.
	PersistCount(ctx context.Context, sessionID, ownerID string, count int) error

	// MessageCount returns the last persisted count, zero when none was
	// recorded. Restore may return fewer messages than this.
	MessageCount(ctx context.Context, sessionID string) (int, error)
}

// Purger is implemented by stores that can drop a session's data.
type Purger interface {
	Purge(ctx context.Context, sessionID string) error
}

// MessageStats aggregates stored messages for one owner.
type MessageStats struct {
	OwnerID          string         `json:"owner_id"`
	TotalMessages    int            `json:"total_messages"`
	Sessions         int            `json:"sessions"`
	ByRole           map[string]int `json:"by_role"`
	AverageWordCount float64        `json:"average_word_count"`
	FirstMessageAt   time.Time      `json:"first_message_at,omitzero"`
	LastMessageAt    time.Time      `json:"last_message_at,omitzero"`
}

// StatsProvider is implemented by stores that report owner statistics.
type StatsProvider interface {
	Stats(ctx context.Context, ownerID string) (MessageStats, error)
}
