package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
)

// KeywordIndex is an in-process Searcher and Indexer. A query scores 1.0
// against a message containing it verbatim (case-insensitive), otherwise
// the fraction of query words the message contains.
type KeywordIndex struct {
	mu      sync.RWMutex
	records []MessageRecord
}

// NewKeywordIndex creates an empty index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{}
}

// Index implements Indexer.
func (k *KeywordIndex) Index(_ context.Context, rec MessageRecord) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.records = append(k.records, rec)
	return nil
}

// Search implements Searcher. Results are sorted by score, newest first
// among equal scores.
func (k *KeywordIndex) Search(_ context.Context, q SearchQuery) ([]SearchResult, error) {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" || q.Limit <= 0 {
		return nil, nil
	}
	words := strings.Fields(text)

	k.mu.RLock()
	defer k.mu.RUnlock()

	var results []SearchResult
	for i := range k.records {
		rec := &k.records[i]
		if !matchesScope(rec, q) {
			continue
		}
		score := keywordScore(strings.ToLower(rec.Content), text, words)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{
			Content:   rec.Content,
			Role:      rec.Role,
			SessionID: rec.SessionID,
			Timestamp: rec.CreatedAt,
			Score:     score,
		})
	}

	slices.SortStableFunc(results, func(a, b SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// Purge removes every record of a session.
func (k *KeywordIndex) Purge(_ context.Context, sessionID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.records = slices.DeleteFunc(k.records, func(r MessageRecord) bool {
		return r.SessionID == sessionID
	})
	return nil
}

// Len returns the number of indexed records.
func (k *KeywordIndex) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.records)
}

// Stats implements StatsProvider over the indexed records of one owner.
func (k *KeywordIndex) Stats(_ context.Context, ownerID string) (MessageStats, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	stats := MessageStats{OwnerID: ownerID, ByRole: map[string]int{}}
	sessions := make(map[string]struct{})
	words := 0
	for i := range k.records {
		rec := &k.records[i]
		if rec.OwnerID != ownerID {
			continue
		}
		if stats.FirstMessageAt.IsZero() || rec.CreatedAt.Before(stats.FirstMessageAt) {
			stats.FirstMessageAt = rec.CreatedAt
		}
		if rec.CreatedAt.After(stats.LastMessageAt) {
			stats.LastMessageAt = rec.CreatedAt
		}
		stats.TotalMessages++
		stats.ByRole[string(rec.Role)]++
		sessions[rec.SessionID] = struct{}{}
		words += len(strings.Fields(rec.Content))
	}
	stats.Sessions = len(sessions)
	if stats.TotalMessages > 0 {
		stats.AverageWordCount = float64(words) / float64(stats.TotalMessages)
	}
	return stats, nil
}

func matchesScope(rec *MessageRecord, q SearchQuery) bool {
	return (q.OwnerID == "" || rec.OwnerID == q.OwnerID) &&
		(q.SessionID == "" || rec.SessionID == q.SessionID) &&
		(q.Role == "" || rec.Role == q.Role)
}

func keywordScore(content, text string, words []string) float64 {
	if strings.Contains(content, text) {
		return 1.0
	}
	hits := 0
	for _, w := range words {
		if strings.Contains(content, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// Interface guards.
var (
	_ Searcher = (*KeywordIndex)(nil)
	_ Indexer  = (*KeywordIndex)(nil)
	_ Purger   = (*KeywordIndex)(nil)

	_ StatsProvider = (*KeywordIndex)(nil)
)
