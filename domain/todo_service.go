package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// maxConflictRetries bounds how often a write is re-applied after losing an
// optimistic concurrency race.
const maxConflictRetries = 5

// TodoService implements the owner-scoped todo operations.
type TodoService struct {
	todos    TodoStorage
	users    IdentityStorage
	mentions MentionResolver
	events   EventPublisher
	now      func() time.Time
	newID    func() string
}

// NewTodoService creates a service over the given stores. events may be nil.
func NewTodoService(todos TodoStorage, users IdentityStorage, events EventPublisher) *TodoService {
	if events == nil {
		events = noopPublisher{}
	}
	return &TodoService{
		todos:    todos,
		users:    users,
		mentions: NewMentionResolver(users),
		events:   events,
		now:      time.Now,
		newID:    newID,
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// validID reports whether id could name a todo. Malformed ids cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// List runs a filtered, sorted and paginated query over the owner's todos.
func (s *TodoService) List(ctx context.Context, ownerID string, q TodoQuery) (TodoPage, error) {
	if err := q.Normalize(); err != nil {
		return TodoPage{}, err
	}
	todos, err := s.todos.ListTodos(ctx, ownerID, q.Filter)
	if err != nil {
		return TodoPage{}, fmt.Errorf("list todos: %w", err)
	}
	page, total := ApplyQuery(ownedBy(todos, ownerID), q)
	views, err := s.expand(ctx, page)
	if err != nil {
		return TodoPage{}, err
	}
	return TodoPage{Todos: views, Pagination: q.Pagination(total)}, nil
}

// Get returns a single todo owned by ownerID.
func (s *TodoService) Get(ctx context.Context, ownerID, id string) (TodoView, error) {
	t, _, err := s.load(ctx, ownerID, id)
	if err != nil {
		return TodoView{}, err
	}
	return s.expandOne(ctx, *t)
}

// Create validates the input, resolves mentions and stores a new todo owned
// by ownerID. Nothing is stored when validation fails.
func (s *TodoService) Create(ctx context.Context, ownerID string, in CreateTodoInput) (TodoView, error) {
	errs := &ValidationError{}
	title := normalizeTitle(in.Title, errs)
	desc := normalizeDescription(in.Description, errs)
	priority := normalizePriority(in.Priority, errs)
	tags := normalizeTags(in.Tags, errs)
	if err := errs.ErrOrNil(); err != nil {
		return TodoView{}, err
	}

	mentioned, err := s.mentions.Resolve(ctx, in.MentionedUsers)
	if err != nil {
		return TodoView{}, fmt.Errorf("resolve mentions: %w", err)
	}

	now := s.now().UTC()
	t := Todo{
		ID:             s.newID(),
		Title:          title,
		Description:    desc,
		Priority:       priority,
		Tags:           tags,
		MentionedUsers: nonNil(mentioned),
		Notes:          []Note{},
		CreatedBy:      ownerID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.todos.InsertTodo(ctx, t); err != nil {
		if errors.Is(err, ErrTooLarge) {
			return TodoView{}, errTodoTooLarge()
		}
		return TodoView{}, fmt.Errorf("insert todo: %w", err)
	}
	s.publish(TodoCreated, t)
	return s.expandOne(ctx, t)
}

// todoPatch holds validated update values.
type todoPatch struct {
	in        UpdateTodoInput
	title     string
	desc      string
	priority  Priority
	tags      []string
	mentioned []string
}

func (p todoPatch) apply(t *Todo, now time.Time) {
	if p.in.Title.Set {
		t.Title = p.title
	}
	if p.in.Description.Set {
		t.Description = p.desc
	}
	if p.in.Priority.Set {
		t.Priority = p.priority
	}
	if p.in.Tags.Set {
		t.Tags = append([]string{}, p.tags...)
	}
	if p.in.MentionedUsers.Set {
		t.MentionedUsers = append([]string{}, p.mentioned...)
	}
	if p.in.Completed.Set {
		t.setCompleted(p.in.Completed.Value, now)
	}
	t.UpdatedAt = now
}

func validatePatch(in UpdateTodoInput) (todoPatch, error) {
	p := todoPatch{in: in}
	errs := &ValidationError{}
	if in.Title.Set {
		p.title = normalizeTitle(in.Title.Value, errs)
	}
	if in.Description.Set {
		p.desc = normalizeDescription(in.Description.Value, errs)
	}
	if in.Priority.Set {
		if in.Priority.Null || in.Priority.Value == "" {
			errs.Add("priority", "Priority must be one of High, Medium, Low")
		} else {
			p.priority = normalizePriority(in.Priority.Value, errs)
		}
	}
	if in.Tags.Set {
		p.tags = normalizeTags(in.Tags.Value, errs)
	}
	if in.Completed.Set && in.Completed.Null {
		errs.Add("completed", "Completed must be a boolean")
	}
	return p, errs.ErrOrNil()
}

// Update applies the fields present in the input to an owned todo. Either all
// present fields are applied or, on a validation error, none are. A present
// mention list replaces the stored set.
func (s *TodoService) Update(ctx context.Context, ownerID, id string, in UpdateTodoInput) (TodoView, error) {
	current, etag, err := s.load(ctx, ownerID, id)
	if err != nil {
		return TodoView{}, err
	}
	patch, err := validatePatch(in)
	if err != nil {
		return TodoView{}, err
	}
	if in.Empty() {
		return s.expandOne(ctx, *current)
	}
	if in.MentionedUsers.Set {
		patch.mentioned, err = s.mentions.Resolve(ctx, in.MentionedUsers.Value)
		if err != nil {
			return TodoView{}, fmt.Errorf("resolve mentions: %w", err)
		}
	}

	next, err := s.replace(ctx, ownerID, current, etag, func(t *Todo) {
		patch.apply(t, s.now().UTC())
	})
	if err != nil {
		return TodoView{}, err
	}
	s.publish(TodoUpdated, next)
	return s.expandOne(ctx, next)
}

// Delete removes an owned todo.
func (s *TodoService) Delete(ctx context.Context, ownerID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	if err := s.todos.DeleteTodo(ctx, ownerID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete todo: %w", err)
	}
	s.publish(TodoDeleted, Todo{ID: id, CreatedBy: ownerID})
	return nil
}

// AddNote appends a trimmed note to an owned todo. Existing notes are never
// edited or removed.
func (s *TodoService) AddNote(ctx context.Context, ownerID, id string, in AddNoteInput) (TodoView, error) {
	text, err := normalizeNote(in.Text)
	if err != nil {
		return TodoView{}, err
	}
	current, etag, err := s.load(ctx, ownerID, id)
	if err != nil {
		return TodoView{}, err
	}
	next, err := s.replace(ctx, ownerID, current, etag, func(t *Todo) {
		now := s.now().UTC()
		t.Notes = append(t.Notes, Note{Text: text, CreatedAt: now})
		t.UpdatedAt = now
	})
	if err != nil {
		return TodoView{}, err
	}
	s.publish(TodoNoteAdded, next)
	return s.expandOne(ctx, next)
}

// replace applies mutate to a copy of current and writes it guarded by etag.
// When another writer wins the race the todo is reloaded and mutate re-applied.
func (s *TodoService) replace(ctx context.Context, ownerID string, current *Todo, etag string, mutate func(*Todo)) (Todo, error) {
	for attempt := 0; ; attempt++ {
		next := current.clone()
		mutate(&next)
		err := s.todos.ReplaceTodo(ctx, next, etag)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, ErrNotFound) {
			return Todo{}, ErrNotFound
		}
		if errors.Is(err, ErrTooLarge) {
			return Todo{}, errTodoTooLarge()
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return Todo{}, fmt.Errorf("replace todo: %w", err)
		}
		if attempt >= maxConflictRetries {
			log.WithFields(log.Fields{"todo": current.ID, "attempts": attempt + 1}).Error("todo write kept conflicting")
			return Todo{}, fmt.Errorf("replace todo %s: %w", current.ID, err)
		}
		log.WithFields(log.Fields{"todo": current.ID, "attempt": attempt + 1}).Debug("todo write conflict; reloading")
		current, etag, err = s.load(ctx, ownerID, current.ID)
		if err != nil {
			return Todo{}, err
		}
	}
}

func (s *TodoService) load(ctx context.Context, ownerID, id string) (*Todo, string, error) {
	if !validID(id) {
		return nil, "", ErrNotFound
	}
	t, etag, err := s.todos.GetTodo(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("get todo: %w", err)
	}
	if t == nil || t.CreatedBy != ownerID {
		return nil, "", ErrNotFound
	}
	return t, etag, nil
}

func (s *TodoService) publish(kind string, t Todo) {
	s.events.Publish(TodoEvent{
		ID:     s.newID(),
		Type:   kind,
		TodoID: t.ID,
		UserID: t.CreatedBy,
		Time:   s.now().UnixNano(),
	})
}

func (s *TodoService) expandOne(ctx context.Context, t Todo) (TodoView, error) {
	views, err := s.expand(ctx, []Todo{t})
	if err != nil {
		return TodoView{}, err
	}
	return views[0], nil
}

// expand joins owner and mentioned user summaries onto todos with a single
// identity lookup. Users that no longer exist are left out of the mentions.
func (s *TodoService) expand(ctx context.Context, todos []Todo) ([]TodoView, error) {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, t := range todos {
		add(t.CreatedBy)
		for _, id := range t.MentionedUsers {
			add(id)
		}
	}

	byID := make(map[string]User, len(ids))
	if len(ids) > 0 {
		users, err := s.users.FindUsersByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("expand users: %w", err)
		}
		for _, u := range users {
			byID[u.ID] = u
		}
	}

	views := make([]TodoView, len(todos))
	for i, t := range todos {
		views[i] = toView(t, byID)
	}
	return views, nil
}

func toView(t Todo, users map[string]User) TodoView {
	owner := UserSummary{ID: t.CreatedBy}
	if u, ok := users[t.CreatedBy]; ok {
		owner = u.Summary()
	}
	mentions := make([]UserSummary, 0, len(t.MentionedUsers))
	for _, id := range t.MentionedUsers {
		if u, ok := users[id]; ok {
			mentions = append(mentions, u.Summary())
		}
	}
	notes := t.Notes
	if notes == nil {
		notes = []Note{}
	}
	return TodoView{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Priority:       t.Priority,
		Tags:           nonNil(t.Tags),
		MentionedUsers: mentions,
		Notes:          notes,
		CreatedBy:      owner,
		Completed:      t.Completed,
		CompletedAt:    t.CompletedAt,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func ownedBy(todos []Todo, ownerID string) []Todo {
	out := todos[:0:0]
	for _, t := range todos {
		if t.CreatedBy == ownerID {
			out = append(out, t)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
