package session

import (
	"time"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/internal/provider"
)

// AnonymousOwner is used when a caller does not identify the owner.
const AnonymousOwner = "anonymous"

// usageHistorySize bounds the per-session usage ring.
const usageHistorySize = 10

// UsageRecord is one usage snapshot taken after an append.
type UsageRecord struct {
	At    time.Time               `json:"at"`
	Usage ctxengine.UsageSnapshot `json:"usage"`
}

// Session is one conversation. Fields are mutated only by the holder of
// the session's lane in a LaneLock; LastActivity is written through
// Store.Touch.
type Session struct {
	ID           string
	OwnerID      string
	CreatedAt    time.Time
	LastActivity time.Time

	History      []provider.LLMMessage
	MessageCount int

	Summary           string
	TurnsSinceSummary int

	usage []UsageRecord
}

// Append adds a message to the history. An assistant message completes a
// turn and advances TurnsSinceSummary.
func (s *Session) Append(role provider.MessageRole, content string) {
	s.History = append(s.History, provider.LLMMessage{Role: role, Content: content})
	s.MessageCount++
	if role == provider.MessageRoleAssistant {
		s.TurnsSinceSummary++
	}
}

// RecordUsage pushes a snapshot into the usage ring, evicting the oldest
// one past capacity.
func (s *Session) RecordUsage(at time.Time, u ctxengine.UsageSnapshot) {
	s.usage = append(s.usage, UsageRecord{At: at, Usage: u})
	if over := len(s.usage) - usageHistorySize; over > 0 {
		s.usage = append(s.usage[:0], s.usage[over:]...)
	}
}

// UsageHistory returns a copy of the usage ring, oldest first.
func (s *Session) UsageHistory() []UsageRecord {
	return append([]UsageRecord(nil), s.usage...)
}

// RecentWarnings counts the warning snapshots among the last n records.
func (s *Session) RecentWarnings(n int) int {
	start := max(len(s.usage)-n, 0)
	count := 0
	for _, r := range s.usage[start:] {
		if r.Usage.IsWarning {
			count++
		}
	}
	return count
}

// Recent returns a copy of the last n history messages, never nil.
func (s *Session) Recent(n int) []provider.LLMMessage {
	start := max(len(s.History)-n, 0)
	out := make([]provider.LLMMessage, 0, len(s.History)-start)
	return append(out, s.History[start:]...)
}

// Restore replaces the history with msgs loaded from durable storage.
// persisted is the stored count of messages ever added; the restored
// history may be only its tail. MessageCount never goes backwards.
func (s *Session) Restore(msgs []provider.LLMMessage, persisted int) {
	s.History = append([]provider.LLMMessage(nil), msgs...)
	s.MessageCount = max(s.MessageCount, persisted, len(msgs))
}
