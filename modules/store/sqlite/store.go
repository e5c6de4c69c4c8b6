package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/internal/provider"
)

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const defaultSearchLimit = 5

// Interface guards.
var (
	_ memory.DurableStore  = (*Store)(nil)
	_ memory.Searcher      = (*Store)(nil)
	_ memory.Indexer       = (*Store)(nil)
	_ memory.Purger        = (*Store)(nil)
	_ memory.StatsProvider = (*Store)(nil)
)

// Store keeps every message ever added, rehydrates sessions and answers
// relevance searches with FTS5. It is safe for concurrent use.
type Store struct {
	db           *sql.DB
	restoreLimit int
}

// Index appends a message. The FTS5 index is updated by triggers.
func (s *Store) Index(ctx context.Context, rec memory.MessageRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (owner_id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.OwnerID, rec.SessionID, string(rec.Role), rec.Content,
		createdAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("sqlite: index message: %w", err)
	}
	return nil
}

// Search returns the stored messages matching any word of the query,
// best first. Scores are the BM25 rank mapped into (0, 1).
func (s *Store) Search(ctx context.Context, q memory.SearchQuery) ([]memory.SearchResult, error) {
	match := matchExpr(q.Text)
	if match == "" {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.content, m.role, m.session_id, m.created_at, bm25(messages_fts)
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		WHERE messages_fts MATCH ?
		  AND (? = '' OR m.owner_id = ?)
		  AND (? = '' OR m.session_id = ?)
		  AND (? = '' OR m.role = ?)
		ORDER BY rank, m.id DESC
		LIMIT ?`,
		match,
		q.OwnerID, q.OwnerID,
		q.SessionID, q.SessionID,
		string(q.Role), string(q.Role),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []memory.SearchResult
	for rows.Next() {
		var (
			r       memory.SearchResult
			role    string
			created string
			rank    float64
		)
		if err := rows.Scan(&r.Content, &role, &r.SessionID, &created, &rank); err != nil {
			return nil, fmt.Errorf("sqlite: scan search result: %w", err)
		}
		r.Role = provider.MessageRole(role)
		if r.Timestamp, err = parseTime(created); err != nil {
			return nil, err
		}
		r.Score = rankScore(rank)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: search rows: %w", err)
	}
	return results, nil
}

// Restore returns the most recent messages of a session in chronological
// order. A non-empty owner restricts the restore to that owner's messages.
func (s *Store) Restore(ctx context.Context, sessionID, ownerID string) ([]provider.LLMMessage, error) {
	if s.restoreLimit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content
		FROM messages
		WHERE session_id = ? AND (? = '' OR owner_id = ?)
		ORDER BY id DESC
		LIMIT ?`,
		sessionID, ownerID, ownerID, s.restoreLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: restore: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []provider.LLMMessage
	for rows.Next() {
		var msg provider.LLMMessage
		var role string
		if err := rows.Scan(&role, &msg.Content); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		msg.Role = provider.MessageRole(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: restore rows: %w", err)
	}

	slices.Reverse(msgs)
	return msgs, nil
}

// PersistCount records the number of messages ever added to a session.
// The stored count never decreases.
func (s *Store) PersistCount(ctx context.Context, sessionID, ownerID string, count int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_counts (session_id, owner_id, count, updated_at)
		VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		ON CONFLICT(session_id) DO UPDATE SET
			owner_id   = excluded.owner_id,
			count      = max(session_counts.count, excluded.count),
			updated_at = excluded.updated_at`,
		sessionID, ownerID, count,
	)
	if err != nil {
		return fmt.Errorf("sqlite: persist count: %w", err)
	}
	return nil
}

// MessageCount returns the persisted message count of a session, zero
// when none was recorded.
func (s *Store) MessageCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT count FROM session_counts WHERE session_id = ?", sessionID,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("sqlite: message count: %w", err)
	}
	return count, nil
}

// Purge removes every message and the count of a session.
func (s *Store) Purge(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin purge tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: purge messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM session_counts WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: purge count: %w", err)
	}

	return tx.Commit()
}

// Stats aggregates the stored messages of one owner.
func (s *Store) Stats(ctx context.Context, ownerID string) (memory.MessageStats, error) {
	stats := memory.MessageStats{OwnerID: ownerID, ByRole: map[string]int{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, role, content, created_at
		FROM messages
		WHERE owner_id = ?
		ORDER BY created_at`,
		ownerID,
	)
	if err != nil {
		return stats, fmt.Errorf("sqlite: stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make(map[string]struct{})
	words := 0
	for rows.Next() {
		var sessionID, role, content, created string
		if err := rows.Scan(&sessionID, &role, &content, &created); err != nil {
			return stats, fmt.Errorf("sqlite: scan stats row: %w", err)
		}
		ts, err := parseTime(created)
		if err != nil {
			return stats, err
		}
		if stats.TotalMessages == 0 {
			stats.FirstMessageAt = ts
		}
		stats.LastMessageAt = ts
		stats.TotalMessages++
		stats.ByRole[role]++
		sessions[sessionID] = struct{}{}
		words += len(strings.Fields(content))
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("sqlite: stats rows: %w", err)
	}

	stats.Sessions = len(sessions)
	if stats.TotalMessages > 0 {
		stats.AverageWordCount = float64(words) / float64(stats.TotalMessages)
	}
	return stats, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// matchExpr turns free text into an FTS5 expression matching any of its
// words. Words are quoted so FTS5 operators in user text are inert.
func matchExpr(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}

// rankScore maps a BM25 rank (negative, lower is better) to (0, 1).
func rankScore(rank float64) float64 {
	r := -rank
	if r < 0 {
		r = 0
	}
	return r / (1 + r)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", s, err)
	}
	return t, nil
}
