// Package session provides conversation.Store backends: in-memory (default),
// PostgreSQL and Redis. Stores hand out copies, so callers may mutate the
// returned session freely and persist it with Put.
package session
