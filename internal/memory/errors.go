package memory

import "errors"

// Sentinel errors for engine operations.
var (
	// ErrContextWindowExceeded indicates the history still overflows the
	// context window after truncation and summarization.
	ErrContextWindowExceeded = errors.New("memory: context window exceeded")

	// ErrInvalidRole indicates a message role other than system, user or
	// assistant.
	ErrInvalidRole = errors.New("memory: invalid role")

	// ErrStatsUnavailable indicates no configured store reports statistics.
	ErrStatsUnavailable = errors.New("memory: statistics unavailable")
)
