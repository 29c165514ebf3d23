package storage

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"todo-api/domain"
)

// ListTodos returns the owner's todos in insertion order. Priority and
// completion filters are evaluated by the table service.
func (s *Storage) ListTodos(ctx context.Context, ownerID string, filter domain.TodoFilter) ([]domain.Todo, error) {
	f := todoFilter(ownerID, filter)
	pager := s.todoTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &f})
	todos := []domain.Todo{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTodo(e)
			if err != nil {
				return nil, err
			}
			todos = append(todos, t)
		}
	}
	return todos, nil
}

// GetTodo fetches a todo with the ETag to use for a conditional replace.
func (s *Storage) GetTodo(ctx context.Context, ownerID, id string) (*domain.Todo, string, error) {
	resp, err := s.todoTable.GetEntity(ctx, ownerID, id, nil)
	if err != nil {
		return nil, "", mapTodoError(err)
	}
	t, err := decodeTodo(resp.Value)
	if err != nil {
		return nil, "", err
	}
	return &t, string(resp.ETag), nil
}

func (s *Storage) InsertTodo(ctx context.Context, t domain.Todo) error {
	payload, err := encodeTodo(t)
	if err != nil {
		return err
	}
	if _, err := s.todoTable.AddEntity(ctx, payload, nil); err != nil {
		return fmt.Errorf("add todo %s: %w", t.ID, err)
	}
	return nil
}

// ReplaceTodo overwrites the todo if it is unchanged since etag was read.
func (s *Storage) ReplaceTodo(ctx context.Context, t domain.Todo, etag string) error {
	payload, err := encodeTodo(t)
	if err != nil {
		return err
	}
	et := azcore.ETag(etag)
	_, err = s.todoTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	return mapTodoError(err)
}

func (s *Storage) DeleteTodo(ctx context.Context, ownerID, id string) error {
	et := azcore.ETagAny
	_, err := s.todoTable.DeleteEntity(ctx, ownerID, id, &aztables.DeleteEntityOptions{IfMatch: &et})
	return mapTodoError(err)
}
