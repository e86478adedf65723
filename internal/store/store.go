// Package store provides chat history persistence.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sevigo/medrag/internal/domain"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("store: session not found")

// Repository persists chat sessions.
type Repository interface {
	// CreateSession stores a new, empty session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession returns the session with its messages in insertion order.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// AppendMessage adds a message; user messages increment the question count.
	AppendMessage(ctx context.Context, sessionID string, msg domain.Message) error

	// ClearSession removes all messages and resets the counter and start time.
	ClearSession(ctx context.Context, sessionID string, startedAt time.Time) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
