package storage

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"todo-api/domain"
)

func TestTodoEntityRoundTrip(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	completed := created.Add(2 * time.Hour)
	todo := domain.Todo{
		ID:             "0190a1b2-0000-7000-8000-000000000001",
		Title:          "Ship it",
		Description:    "before friday",
		Priority:       domain.PriorityHigh,
		Tags:           []string{"work"},
		MentionedUsers: []string{"u2"},
		Notes:          []domain.Note{{Text: "started", CreatedAt: created.Add(time.Hour)}},
		CreatedBy:      "u1",
		Completed:      true,
		CompletedAt:    &completed,
		CreatedAt:      created,
		UpdatedAt:      completed,
	}
	payload, err := encodeTodo(todo)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeTodo(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(todo, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeTodoTableLayout(t *testing.T) {
	payload, err := encodeTodo(domain.Todo{ID: "t1", CreatedBy: "u1", Title: "x", Priority: domain.PriorityLow})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["PartitionKey"] != "u1" || raw["RowKey"] != "t1" {
		t.Fatalf("unexpected keys: %v", raw)
	}
	if raw["Tags"] != "[]" || raw["MentionedUsers"] != "[]" || raw["Notes"] != "[]" {
		t.Fatalf("expected empty JSON lists, got %v", raw)
	}
	if raw["CreatedAt@odata.type"] != edmInt64 {
		t.Fatalf("missing Int64 annotation: %v", raw)
	}
	if _, ok := raw["CreatedAt"].(string); !ok {
		t.Fatalf("Int64 values must be encoded as strings: %v", raw["CreatedAt"])
	}
}

func longNotes(n int, text string, at time.Time) []domain.Note {
	notes := make([]domain.Note, n)
	for i := range notes {
		notes[i] = domain.Note{Text: text, CreatedAt: at.Add(time.Duration(i) * time.Minute)}
	}
	return notes
}

func TestEncodeTodoSplitsLongNotes(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	todo := domain.Todo{
		ID:             "t1",
		Title:          "long thread",
		Priority:       domain.PriorityMedium,
		Tags:           []string{"work"},
		MentionedUsers: []string{},
		Notes:          longNotes(40, strings.Repeat("ü", domain.MaxNoteLength), created),
		CreatedBy:      "u1",
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	payload, err := encodeTodo(todo)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for name, v := range raw {
		if s, ok := v.(string); ok && utf16Len(s) > maxPropertyChars {
			t.Fatalf("property %s holds %d chars, limit %d", name, utf16Len(s), maxPropertyChars)
		}
	}
	if parts, _ := raw["NotesParts"].(float64); parts < 2 {
		t.Fatalf("expected notes split across columns, got NotesParts=%v", raw["NotesParts"])
	}
	if _, ok := raw["TagsParts"]; ok {
		t.Fatalf("short tags should stay in one column")
	}

	got, err := decodeTodo(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(todo, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeTodoTooLarge(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	todo := domain.Todo{
		ID:        "t1",
		Title:     "novel",
		CreatedBy: "u1",
		Notes:     longNotes(600, strings.Repeat("x", domain.MaxNoteLength), created),
		CreatedAt: created,
		UpdatedAt: created,
	}
	if _, err := encodeTodo(todo); !errors.Is(err, domain.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestChunkUTF16(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  []string
	}{
		{"", 4, []string{""}},
		{"abcd", 4, []string{"abcd"}},
		{"abcde", 2, []string{"ab", "cd", "e"}},
		{"a\U0001F600b", 2, []string{"a", "\U0001F600", "b"}},
		{"üüü", 2, []string{"üü", "ü"}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, chunkUTF16(tc.in, tc.limit)); diff != "" {
				t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeTodoMissingContinuation(t *testing.T) {
	data := []byte(`{"PartitionKey":"u1","RowKey":"t3","Notes":"[","NotesParts":2}`)
	if _, err := decodeTodo(data); err == nil || !strings.Contains(err.Error(), "Notes2") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestDecodeTodoFromService(t *testing.T) {
	data := []byte(`{"odata.etag":"W/\"x\"","PartitionKey":"u1","RowKey":"t1","Timestamp":"2024-05-01T10:00:00Z",` +
		`"Title":"Legacy","Priority":"Medium","Completed":false,"CompletedAt@odata.type":"Edm.Int64","CompletedAt":"0",` +
		`"CreatedAt@odata.type":"Edm.Int64","CreatedAt":"1714557600000000000","UpdatedAt@odata.type":"Edm.Int64","UpdatedAt":"1714557600000000000"}`)
	got, err := decodeTodo(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "t1" || got.CreatedBy != "u1" || got.CompletedAt != nil {
		t.Fatalf("unexpected todo %+v", got)
	}
	if got.Tags == nil || got.MentionedUsers == nil || got.Notes == nil {
		t.Fatalf("missing lists should decode empty: %+v", got)
	}
	if !got.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected createdAt %v", got.CreatedAt)
	}

	if _, err := decodeTodo([]byte(`{"RowKey":"t2","Tags":"not json"}`)); err == nil || !strings.Contains(err.Error(), "t2") {
		t.Fatalf("expected tag decode error naming the todo, got %v", err)
	}
}

func TestUserActions(t *testing.T) {
	u := domain.User{ID: "u1", Username: "Alice", Email: "Alice@Example.com", PasswordHash: "h"}
	actions, err := userActions(u)
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	var keys []string
	for _, a := range actions {
		var k entityKeys
		if err := json.Unmarshal(a.Entity, &k); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		keys = append(keys, k.RowKey)
	}
	want := []string{"id:u1", "name:alice", "email:alice@example.com"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("row keys mismatch (-want +got):\n%s", diff)
	}

	got, err := decodeUser(actions[0].Entity)
	if err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if got.ID != "u1" || got.Username != "Alice" || got.PasswordHash != "h" {
		t.Fatalf("unexpected user %+v", got)
	}
}
