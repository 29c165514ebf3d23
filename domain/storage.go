package domain

import "context"

// TodoStorage persists todo records. Every operation is addressed by owner,
// and implementations must never return a record owned by someone else.
type TodoStorage interface {
	// ListTodos returns the owner's todos. Implementations may use the filter
	// to narrow the result but are not required to apply all of it.
	ListTodos(ctx context.Context, ownerID string, filter TodoFilter) ([]Todo, error)
	// GetTodo returns the todo and its version tag, or ErrNotFound.
	GetTodo(ctx context.Context, ownerID, id string) (*Todo, string, error)
	InsertTodo(ctx context.Context, t Todo) error
	// ReplaceTodo writes t if the stored version still matches etag, otherwise
	// it returns ErrConcurrencyConflict.
	ReplaceTodo(ctx context.Context, t Todo, etag string) error
	// DeleteTodo removes the todo or returns ErrNotFound.
	DeleteTodo(ctx context.Context, ownerID, id string) error
}

// IdentityStorage looks up and registers users.
type IdentityStorage interface {
	FindUsersByUsernames(ctx context.Context, usernames []string) ([]User, error)
	FindUsersByIDs(ctx context.Context, ids []string) ([]User, error)
	// GetUser returns the user or ErrNotFound.
	GetUser(ctx context.Context, id string) (*User, error)
	// FindUserByLogin matches a username or email, or returns ErrNotFound.
	FindUserByLogin(ctx context.Context, login string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// InsertUser returns ErrUserExists when the username or email is taken.
	InsertUser(ctx context.Context, u User) error
}

// EventPublisher receives todo change events. Publish must not block the
// caller on delivery.
type EventPublisher interface {
	Publish(ev TodoEvent)
}
