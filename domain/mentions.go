package domain

import (
	"context"
	"strings"
)

// MentionResolver maps usernames to user ids, ignoring case. Resolution is
// best effort: unknown usernames are dropped without error and are not
// reported back.
type MentionResolver struct {
	users IdentityStorage
}

// NewMentionResolver creates a resolver backed by the identity store.
func NewMentionResolver(users IdentityStorage) MentionResolver {
	return MentionResolver{users: users}
}

// Resolve returns the distinct ids of the known usernames in handles, ordered
// by first mention. Empty input resolves to nil without a store lookup.
func (r MentionResolver) Resolve(ctx context.Context, handles []string) ([]string, error) {
	seen := make(map[string]struct{}, len(handles))
	names := make([]string, 0, len(handles))
	for _, h := range handles {
		h = strings.TrimPrefix(strings.TrimSpace(h), "@")
		if h == "" {
			continue
		}
		key := strings.ToLower(h)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, h)
	}
	if len(names) == 0 {
		return nil, nil
	}

	users, err := r.users.FindUsersByUsernames(ctx, names)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(users))
	for _, u := range users {
		byName[strings.ToLower(u.Username)] = u.ID
	}

	ids := make([]string, 0, len(users))
	added := make(map[string]struct{}, len(users))
	for _, name := range names {
		id, ok := byName[strings.ToLower(name)]
		if !ok {
			continue
		}
		if _, dup := added[id]; dup {
			continue
		}
		added[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
