package domain

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 6
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func normalizeTitle(title string, errs *ValidationError) string {
	title = strings.TrimSpace(title)
	if title == "" {
		errs.Add("title", "Title is required")
		return title
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		errs.Add("title", fmt.Sprintf("Title cannot exceed %d characters", MaxTitleLength))
	}
	return title
}

func normalizeDescription(desc string, errs *ValidationError) string {
	desc = strings.TrimSpace(desc)
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		errs.Add("description", fmt.Sprintf("Description cannot exceed %d characters", MaxDescriptionLength))
	}
	return desc
}

// normalizePriority defaults an empty priority to Medium.
func normalizePriority(p Priority, errs *ValidationError) Priority {
	if p == "" {
		return PriorityMedium
	}
	if !p.IsValid() {
		errs.Add("priority", fmt.Sprintf("Priority must be one of High, Medium, Low, got %q", string(p)))
	}
	return p
}

// normalizeTags trims each tag and drops empty ones, preserving order.
func normalizeTags(tags []string, errs *ValidationError) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			errs.Add("tags", fmt.Sprintf("Tag cannot exceed %d characters", MaxTagLength))
			continue
		}
		out = append(out, tag)
	}
	return out
}

func normalizeNote(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", NewValidationError("text", "Note text is required")
	}
	if utf8.RuneCountInString(text) > MaxNoteLength {
		return "", NewValidationError("text", fmt.Sprintf("Note cannot exceed %d characters", MaxNoteLength))
	}
	return text, nil
}

func validateRegistration(in *RegisterInput) error {
	errs := &ValidationError{}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	switch n := utf8.RuneCountInString(in.Username); {
	case n == 0:
		errs.Add("username", "Username is required")
	case n < minUsernameLength || n > maxUsernameLength:
		errs.Add("username", fmt.Sprintf("Username must be between %d and %d characters", minUsernameLength, maxUsernameLength))
	case !usernamePattern.MatchString(in.Username):
		errs.Add("username", "Username may only contain letters, digits and underscores")
	}
	if in.Email == "" {
		errs.Add("email", "Email is required")
	} else if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		errs.Add("email", "Email is invalid")
	}
	if len(in.Password) < minPasswordLength {
		errs.Add("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	return errs.ErrOrNil()
}
