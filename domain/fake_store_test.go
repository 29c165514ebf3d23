package domain

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type storedTodo struct {
	todo    Todo
	version int
}

type fakeStore struct {
	mu    sync.Mutex
	todos map[string]map[string]storedTodo
	users []User

	// conflicts makes the next n ReplaceTodo calls fail as stale.
	conflicts int
	// maxNotes, when set, rejects writes of todos holding more notes.
	maxNotes int

	replaceCalls    int
	usernameLookups int
	idLookups       int
}

func newFakeStore(users ...User) *fakeStore {
	return &fakeStore{todos: map[string]map[string]storedTodo{}, users: users}
}

func (f *fakeStore) ListTodos(ctx context.Context, ownerID string, filter TodoFilter) ([]Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Todo{}
	for _, st := range f.todos[ownerID] {
		t := st.todo
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetTodo(ctx context.Context, ownerID, id string) (*Todo, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.todos[ownerID][id]
	if !ok {
		return nil, "", ErrNotFound
	}
	t := st.todo.clone()
	return &t, strconv.Itoa(st.version), nil
}

func (f *fakeStore) InsertTodo(ctx context.Context, t Todo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.todos[t.CreatedBy] == nil {
		f.todos[t.CreatedBy] = map[string]storedTodo{}
	}
	f.todos[t.CreatedBy][t.ID] = storedTodo{todo: t.clone(), version: 1}
	return nil
}

func (f *fakeStore) ReplaceTodo(ctx context.Context, t Todo, etag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls++
	st, ok := f.todos[t.CreatedBy][t.ID]
	if !ok {
		return ErrNotFound
	}
	if f.maxNotes > 0 && len(t.Notes) > f.maxNotes {
		return ErrTooLarge
	}
	if f.conflicts > 0 {
		f.conflicts--
		st.version++
		f.todos[t.CreatedBy][t.ID] = st
		return ErrConcurrencyConflict
	}
	if strconv.Itoa(st.version) != etag {
		return ErrConcurrencyConflict
	}
	f.todos[t.CreatedBy][t.ID] = storedTodo{todo: t.clone(), version: st.version + 1}
	return nil
}

func (f *fakeStore) DeleteTodo(ctx context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.todos[ownerID][id]; !ok {
		return ErrNotFound
	}
	delete(f.todos[ownerID], id)
	return nil
}

func (f *fakeStore) FindUsersByUsernames(ctx context.Context, usernames []string) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usernameLookups++
	var out []User
	for _, u := range f.users {
		for _, name := range usernames {
			if strings.EqualFold(u.Username, name) {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) FindUsersByIDs(ctx context.Context, ids []string) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idLookups++
	var out []User
	for _, u := range f.users {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) FindUserByLogin(ctx context.Context, login string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login) {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]User(nil), f.users...), nil
}

func (f *fakeStore) InsertUser(ctx context.Context, u User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return ErrUserExists
		}
	}
	f.users = append(f.users, u)
	return nil
}

func (f *fakeStore) removeUser(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.users[:0]
	for _, u := range f.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	f.users = kept
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []TodoEvent
}

func (p *recordingPublisher) Publish(ev TodoEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// stepClock returns a clock advancing one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

var (
	alice = User{ID: "u-alice", Username: "alice", Email: "alice@example.com", FirstName: "Alice"}
	bob   = User{ID: "u-bob", Username: "Bob", Email: "bob@example.com"}
	carol = User{ID: "u-carol", Username: "carol", Email: "carol@example.com"}
)

func newTestService(store *fakeStore, events EventPublisher) *TodoService {
	svc := NewTodoService(store, store, events)
	svc.now = stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return svc
}
