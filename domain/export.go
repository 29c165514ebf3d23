package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Export is a point-in-time snapshot of an owner's whole todo collection.
type Export struct {
	ExportedAt time.Time  `json:"exportedAt"`
	User       string     `json:"user"`
	TotalTodos int        `json:"totalTodos"`
	Todos      []TodoView `json:"todos"`
}

// Export returns every todo owned by ownerID, newest first, with users
// expanded. The result is not paginated.
func (s *TodoService) Export(ctx context.Context, ownerID string) (Export, error) {
	todos, err := s.todos.ListTodos(ctx, ownerID, TodoFilter{})
	if err != nil {
		return Export{}, fmt.Errorf("list todos: %w", err)
	}
	owned := ownedBy(todos, ownerID)
	sortTodos(owned, "createdAt", SortDesc)

	views, err := s.expand(ctx, owned)
	if err != nil {
		return Export{}, err
	}

	handle := ownerID
	u, err := s.users.GetUser(ctx, ownerID)
	switch {
	case err == nil:
		handle = u.Username
	case !errors.Is(err, ErrNotFound):
		return Export{}, fmt.Errorf("get user: %w", err)
	}

	return Export{
		ExportedAt: s.now().UTC(),
		User:       handle,
		TotalTodos: len(views),
		Todos:      views,
	}, nil
}
