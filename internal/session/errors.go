// Package session holds per-conversation state: message history, running
// summary and usage history, plus the session table and per-session locks.
package session

import "errors"

// ErrStoreFull indicates the session table reached its configured
// capacity and no new session can be created.
var ErrStoreFull = errors.New("session: store full")
