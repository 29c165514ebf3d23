package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"todo-api/domain"
)

const (
	userPartition = "user"
	idPrefix      = "id:"
	namePrefix    = "name:"
	emailPrefix   = "email:"
)

func userIDKey(id string) string { return idPrefix + id }

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *Storage) queryUsers(ctx context.Context, filter string) ([]domain.User, error) {
	pager := s.userTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	users := []domain.User{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			u, err := decodeUser(e)
			if err != nil {
				return nil, err
			}
			users = append(users, u)
		}
	}
	return users, nil
}

func (s *Storage) queryUsersAnyOf(ctx context.Context, prop string, values []string) ([]domain.User, error) {
	var users []domain.User
	for _, f := range anyOf(userPartition, prop, values) {
		batch, err := s.queryUsers(ctx, f)
		if err != nil {
			return nil, err
		}
		users = append(users, batch...)
	}
	return users, nil
}

// FindUsersByUsernames matches usernames case-insensitively.
func (s *Storage) FindUsersByUsernames(ctx context.Context, usernames []string) ([]domain.User, error) {
	keys := make([]string, len(usernames))
	for i, n := range usernames {
		keys[i] = lower(n)
	}
	return s.queryUsersAnyOf(ctx, "UsernameLower", keys)
}

func (s *Storage) FindUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userIDKey(id)
	}
	return s.queryUsersAnyOf(ctx, "RowKey", keys)
}

func (s *Storage) GetUser(ctx context.Context, id string) (*domain.User, error) {
	resp, err := s.userTable.GetEntity(ctx, userPartition, userIDKey(id), nil)
	if err != nil {
		return nil, mapTodoError(err)
	}
	u, err := decodeUser(resp.Value)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByLogin resolves a username or email through its index row.
func (s *Storage) FindUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	key := namePrefix + lower(login)
	if strings.Contains(login, "@") {
		key = emailPrefix + lower(login)
	}
	resp, err := s.userTable.GetEntity(ctx, userPartition, key, nil)
	if err != nil {
		return nil, mapTodoError(err)
	}
	var idx userIndexEntity
	if err := json.Unmarshal(resp.Value, &idx); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, idx.UserID)
}

func (s *Storage) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.queryUsers(ctx, prefixRange(userPartition, idPrefix))
}

// InsertUser writes the profile row and both uniqueness index rows in one
// transaction, so a taken username or email leaves nothing behind.
func (s *Storage) InsertUser(ctx context.Context, u domain.User) error {
	actions, err := userActions(u)
	if err != nil {
		return err
	}
	if _, err := s.userTable.SubmitTransaction(ctx, actions, nil); err != nil {
		if isConflict(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert user %s: %w", u.ID, err)
	}
	return nil
}

func userActions(u domain.User) ([]aztables.TransactionAction, error) {
	rows := []any{
		encodeUser(u),
		userIndexEntity{entityKeys: entityKeys{PartitionKey: userPartition, RowKey: namePrefix + lower(u.Username)}, UserID: u.ID},
		userIndexEntity{entityKeys: entityKeys{PartitionKey: userPartition, RowKey: emailPrefix + lower(u.Email)}, UserID: u.ID},
	}
	actions := make([]aztables.TransactionAction, 0, len(rows))
	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		actions = append(actions, aztables.TransactionAction{ActionType: aztables.TransactionTypeAdd, Entity: payload})
	}
	return actions, nil
}
