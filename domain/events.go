package domain

const (
	TodoCreated   = "todo-created"
	TodoUpdated   = "todo-updated"
	TodoDeleted   = "todo-deleted"
	TodoNoteAdded = "todo-note-added"
)

// TodoEvent records a change to a todo.
type TodoEvent struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	TodoID string `json:"todoId"`
	UserID string `json:"userId"`
	Time   int64  `json:"time"`
}

type noopPublisher struct{}

func (noopPublisher) Publish(TodoEvent) {}
