package domain

// CreateTodoInput carries the fields accepted when creating a todo.
// MentionedUsers holds usernames, resolved to ids on write.
type CreateTodoInput struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       Priority `json:"priority"`
	Tags           []string `json:"tags"`
	MentionedUsers []string `json:"mentionedUsers"`
}

// UpdateTodoInput is a sparse update: only fields with Set == true change.
// A present MentionedUsers replaces the whole mention set, even when empty.
type UpdateTodoInput struct {
	Title          Optional[string]   `json:"title"`
	Description    Optional[string]   `json:"description"`
	Priority       Optional[Priority] `json:"priority"`
	Tags           Optional[[]string] `json:"tags"`
	MentionedUsers Optional[[]string] `json:"mentionedUsers"`
	Completed      Optional[bool]     `json:"completed"`
}

// Empty reports whether no field was supplied.
func (in UpdateTodoInput) Empty() bool {
	return !in.Title.Set && !in.Description.Set && !in.Priority.Set &&
		!in.Tags.Set && !in.MentionedUsers.Set && !in.Completed.Set
}

// AddNoteInput carries the text of a new note.
type AddNoteInput struct {
	Text string `json:"text"`
}

// RegisterInput carries the fields of a new user account.
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginInput identifies a user by username or email.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
