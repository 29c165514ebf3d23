package api

import (
	"context"

	"todo-api/domain"
)

// TodoService is the owner-scoped todo API used by handlers.
type TodoService interface {
	List(ctx context.Context, ownerID string, q domain.TodoQuery) (domain.TodoPage, error)
	Get(ctx context.Context, ownerID, id string) (domain.TodoView, error)
	Create(ctx context.Context, ownerID string, in domain.CreateTodoInput) (domain.TodoView, error)
	Update(ctx context.Context, ownerID, id string, in domain.UpdateTodoInput) (domain.TodoView, error)
	Delete(ctx context.Context, ownerID, id string) error
	AddNote(ctx context.Context, ownerID, id string, in domain.AddNoteInput) (domain.TodoView, error)
	Export(ctx context.Context, ownerID string) (domain.Export, error)
}

// UserService registers, authenticates and looks up users.
type UserService interface {
	Register(ctx context.Context, in domain.RegisterInput) (domain.User, error)
	Authenticate(ctx context.Context, login, password string) (domain.User, error)
	Get(ctx context.Context, id string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// Authenticator is implemented by types able to verify bearer tokens.
type Authenticator interface {
	UserIDFromBearer(token string) (string, error)
}

// TokenIssuer signs tokens for authenticated users.
type TokenIssuer interface {
	IssueToken(userID string) (string, error)
}

// Deduper prevents processing of duplicate requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}

// EventStore delivers todo change events.
type EventStore interface {
	PublishEvents(ctx context.Context, events []domain.TodoEvent) error
}
