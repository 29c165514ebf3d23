package domain

import (
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	DefaultSortBy   = "createdAt"
)

// SortOrder is the direction of a todo query sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TodoFilter selects todos within an owner's collection. Every supplied
// criterion must match; within Tags a todo matches when it carries any of them.
type TodoFilter struct {
	Priority      *Priority
	Completed     *bool
	Tags          []string
	MentionedUser string
}

// Matches reports whether t satisfies every criterion of f.
func (f TodoFilter) Matches(t Todo) bool {
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if len(f.Tags) > 0 && !containsAny(t.Tags, f.Tags) {
		return false
	}
	if f.MentionedUser != "" && !contains(t.MentionedUsers, f.MentionedUser) {
		return false
	}
	return true
}

// TodoQuery is a filtered, sorted and paginated todo listing.
type TodoQuery struct {
	Filter    TodoFilter
	SortBy    string
	SortOrder SortOrder
	Page      int
	Limit     int
}

// Normalize fills defaults and validates the query.
func (q *TodoQuery) Normalize() error {
	errs := &ValidationError{}
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageSize
	}
	if q.Page < 0 {
		errs.Add("page", "Page must be a positive integer")
	}
	if q.Limit < 0 {
		errs.Add("limit", "Limit must be a positive integer")
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.SortBy == "" {
		q.SortBy = DefaultSortBy
	}
	switch SortOrder(strings.ToLower(string(q.SortOrder))) {
	case "", SortDesc:
		q.SortOrder = SortDesc
	default:
		q.SortOrder = SortAsc
	}
	if p := q.Filter.Priority; p != nil && !p.IsValid() {
		errs.Add("priority", fmt.Sprintf("Priority must be one of High, Medium, Low, got %q", string(*p)))
	}
	tags := q.Filter.Tags[:0:0]
	for _, tag := range q.Filter.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	q.Filter.Tags = tags
	q.Filter.MentionedUser = strings.TrimSpace(q.Filter.MentionedUser)
	return errs.ErrOrNil()
}

// Pagination describes the page of a result set with total matching records.
func (q TodoQuery) Pagination(total int) Pagination {
	pages := 0
	if q.Limit > 0 {
		pages = (total + q.Limit - 1) / q.Limit
	}
	return Pagination{Page: q.Page, Limit: q.Limit, Total: total, Pages: pages}
}

// ApplyQuery filters, sorts and paginates todos. It returns the requested page
// and the number of todos matching the filter before pagination.
func ApplyQuery(todos []Todo, q TodoQuery) ([]Todo, int) {
	matched := make([]Todo, 0, len(todos))
	for _, t := range todos {
		if q.Filter.Matches(t) {
			matched = append(matched, t)
		}
	}
	sortTodos(matched, q.SortBy, q.SortOrder)

	total := len(matched)
	if q.Page < 1 || q.Limit < 1 || q.Page-1 > total/q.Limit {
		return []Todo{}, total
	}
	start := (q.Page - 1) * q.Limit
	if start >= total {
		return []Todo{}, total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total
}

// sortTodos orders todos by a single field with ties broken by id, which is
// time ordered. Unknown fields fall back to ascending insertion order.
func sortTodos(todos []Todo, field string, order SortOrder) {
	cmp, ok := todoComparators[field]
	if !ok {
		sort.SliceStable(todos, func(i, j int) bool { return todos[i].ID < todos[j].ID })
		return
	}
	sort.SliceStable(todos, func(i, j int) bool {
		c := cmp(todos[i], todos[j])
		if order == SortDesc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return todos[i].ID < todos[j].ID
	})
}

var todoComparators = map[string]func(a, b Todo) int{
	"createdAt": func(a, b Todo) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updatedAt": func(a, b Todo) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	"completedAt": func(a, b Todo) int {
		switch {
		case a.CompletedAt == nil && b.CompletedAt == nil:
			return 0
		case a.CompletedAt == nil:
			return -1
		case b.CompletedAt == nil:
			return 1
		}
		return a.CompletedAt.Compare(*b.CompletedAt)
	},
	"title":    func(a, b Todo) int { return strings.Compare(a.Title, b.Title) },
	"priority": func(a, b Todo) int { return a.Priority.rank() - b.Priority.rank() },
	"completed": func(a, b Todo) int {
		switch {
		case a.Completed == b.Completed:
			return 0
		case a.Completed:
			return 1
		}
		return -1
	},
}

// SortFields returns the fields a todo query can sort by.
func SortFields() []string {
	fields := make([]string, 0, len(todoComparators))
	for f := range todoComparators {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func containsAny(values, wanted []string) bool {
	for _, w := range wanted {
		if contains(values, w) {
			return true
		}
	}
	return false
}
