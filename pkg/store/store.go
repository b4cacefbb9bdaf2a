// Package store is the persistence adapter: opaque rows keyed by identifier
// with JSON-typed columns, behind an interface the business layer talks to.
// Two drivers exist: Postgres for deployments, Memory for development and
// tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/calledit/calledit-server/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("entity not found")

// Store is the persistence surface the services run on. Implementations must
// be safe for concurrent callers; per-chat read-modify-write cycles are
// serialized above this layer by the chat-lock manager.
type Store interface {
	// GetUser returns the user or ErrNotFound.
	GetUser(ctx context.Context, userID string) (*models.User, error)
	// PutUser inserts or fully replaces the user row.
	PutUser(ctx context.Context, u *models.User) error

	// GetChat returns the chat or ErrNotFound.
	GetChat(ctx context.Context, chatID int64) (*models.Chat, error)
	// GetChats returns the chats that exist among chatIDs, in input order.
	// Missing ids are skipped, not errors.
	GetChats(ctx context.Context, chatIDs []int64) ([]*models.Chat, error)
	// CreateChat inserts the chat, assigns its id, and returns it.
	CreateChat(ctx context.Context, c *models.Chat) (int64, error)
	// PutChat replaces an existing chat row; ErrNotFound if absent.
	PutChat(ctx context.Context, c *models.Chat) error

	// GetAssertion returns the assertion or ErrNotFound.
	GetAssertion(ctx context.Context, assertionID int64) (*models.Assertion, error)
	// CreateAssertion inserts the assertion, assigns its id, and returns it.
	CreateAssertion(ctx context.Context, a *models.Assertion) (int64, error)
	// PutAssertion replaces an existing assertion row; ErrNotFound if absent.
	PutAssertion(ctx context.Context, a *models.Assertion) error
	// ListDueAssertions returns open assertions whose validation date is at or
	// before now, ordered by id.
	ListDueAssertions(ctx context.Context, now time.Time) ([]*models.Assertion, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
	// Close releases underlying resources.
	Close() error
}
