package domain

import "time"

// Field limits for todo records.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxTagLength         = 50
	MaxNoteLength        = 1000
)

// Priority is the urgency of a todo.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ValidPriorities returns all accepted priority values.
func ValidPriorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// rank orders priorities from least to most urgent.
func (p Priority) rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

// Note is an append-only annotation on a todo.
type Note struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Todo is the stored form of a todo record. MentionedUsers holds user ids and
// is never denormalized; see TodoView for the expanded form.
type Todo struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Priority       Priority   `json:"priority"`
	Tags           []string   `json:"tags"`
	MentionedUsers []string   `json:"mentionedUsers"`
	Notes          []Note     `json:"notes"`
	CreatedBy      string     `json:"createdBy"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// clone returns a deep copy so callers can mutate slices safely.
func (t Todo) clone() Todo {
	out := t
	out.Tags = append([]string(nil), t.Tags...)
	out.MentionedUsers = append([]string(nil), t.MentionedUsers...)
	out.Notes = append([]Note(nil), t.Notes...)
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		out.CompletedAt = &ts
	}
	return out
}

// setCompleted applies the completion transition: completedAt is stamped on
// false→true, cleared on true→false and untouched otherwise.
func (t *Todo) setCompleted(completed bool, now time.Time) {
	if completed == t.Completed {
		return
	}
	t.Completed = completed
	if completed {
		ts := now
		t.CompletedAt = &ts
	} else {
		t.CompletedAt = nil
	}
}

// TodoView is a todo with the owner and mentioned users expanded for display.
type TodoView struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Priority       Priority      `json:"priority"`
	Tags           []string      `json:"tags"`
	MentionedUsers []UserSummary `json:"mentionedUsers"`
	Notes          []Note        `json:"notes"`
	CreatedBy      UserSummary   `json:"createdBy"`
	Completed      bool          `json:"completed"`
	CompletedAt    *time.Time    `json:"completedAt"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Pagination describes the page returned by a todo query.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// TodoPage is the result of a todo query.
type TodoPage struct {
	Todos      []TodoView `json:"todos"`
	Pagination Pagination `json:"pagination"`
}
