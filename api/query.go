package api

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"todo-api/domain"
)

// parseTodoQuery reads the listing query parameters. Range checks and defaults
// are left to domain.TodoQuery.Normalize; only malformed values fail here.
func parseTodoQuery(c echo.Context) (domain.TodoQuery, error) {
	var q domain.TodoQuery
	errs := &domain.ValidationError{}

	q.Page = positiveParam(c, "page", "Page must be a positive integer", errs)
	q.Limit = positiveParam(c, "limit", "Limit must be a positive integer", errs)

	if v := strings.TrimSpace(c.QueryParam("priority")); v != "" {
		p := domain.Priority(v)
		q.Filter.Priority = &p
	}
	if v := strings.TrimSpace(c.QueryParam("completed")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs.Add("completed", "Completed must be true or false")
		} else {
			q.Filter.Completed = &b
		}
	}
	for _, raw := range c.QueryParams()["tags"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				q.Filter.Tags = append(q.Filter.Tags, tag)
			}
		}
	}
	q.Filter.MentionedUser = strings.TrimSpace(c.QueryParam("mentionedUser"))
	q.SortBy = strings.TrimSpace(c.QueryParam("sortBy"))
	q.SortOrder = domain.SortOrder(strings.TrimSpace(c.QueryParam("sortOrder")))

	return q, errs.ErrOrNil()
}

func positiveParam(c echo.Context, name, msg string, errs *domain.ValidationError) int {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		errs.Add(name, msg)
		return 0
	}
	return n
}

func filtered(f domain.TodoFilter) bool {
	return f.Priority != nil || f.Completed != nil || len(f.Tags) > 0 || f.MentionedUser != ""
}
