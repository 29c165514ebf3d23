package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"todo-api/domain"
)

const edmInt64 = "Edm.Int64"

// Table service limits: a string property holds 64 KiB of UTF-16 and an
// entity holds 1 MiB.
const (
	maxPropertyChars = 32 * 1024
	maxEntityBytes   = 1024 * 1024
)

// entityKeys are the table keys shared by every entity.
type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

// todoEntity is the table form of a todo. List properties are stored as JSON
// strings and timestamps as unix nanoseconds; a zero CompletedAt means open.
// A list too long for one property continues in Notes2, Notes3 and so on,
// with the part count in NotesParts.
type todoEntity struct {
	entityKeys
	Title               string `json:"Title"`
	Description         string `json:"Description"`
	Priority            string `json:"Priority"`
	Tags                string `json:"Tags"`
	TagsParts           int    `json:"TagsParts,omitempty"`
	MentionedUsers      string `json:"MentionedUsers"`
	MentionedUsersParts int    `json:"MentionedUsersParts,omitempty"`
	Notes               string `json:"Notes"`
	NotesParts          int    `json:"NotesParts,omitempty"`
	Completed           bool   `json:"Completed"`
	CompletedAt         int64  `json:"CompletedAt,string"`
	CompletedAtType     string `json:"CompletedAt@odata.type"`
	CreatedAt           int64  `json:"CreatedAt,string"`
	CreatedAtType       string `json:"CreatedAt@odata.type"`
	UpdatedAt           int64  `json:"UpdatedAt,string"`
	UpdatedAtType       string `json:"UpdatedAt@odata.type"`
}

type noteRecord struct {
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

func encodeTodo(t domain.Todo) ([]byte, error) {
	tags, err := json.Marshal(nonNil(t.Tags))
	if err != nil {
		return nil, err
	}
	mentions, err := json.Marshal(nonNil(t.MentionedUsers))
	if err != nil {
		return nil, err
	}
	notes := make([]noteRecord, len(t.Notes))
	for i, n := range t.Notes {
		notes[i] = noteRecord{Text: n.Text, CreatedAt: n.CreatedAt.UnixNano()}
	}
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return nil, err
	}
	var completedAt int64
	if t.CompletedAt != nil {
		completedAt = t.CompletedAt.UnixNano()
	}
	ent := todoEntity{
		entityKeys:      entityKeys{PartitionKey: t.CreatedBy, RowKey: t.ID},
		Title:           t.Title,
		Description:     t.Description,
		Priority:        string(t.Priority),
		Completed:       t.Completed,
		CompletedAt:     completedAt,
		CompletedAtType: edmInt64,
		CreatedAt:       t.CreatedAt.UnixNano(),
		CreatedAtType:   edmInt64,
		UpdatedAt:       t.UpdatedAt.UnixNano(),
		UpdatedAtType:   edmInt64,
	}
	var extra []property
	ent.Tags, ent.TagsParts, extra = splitColumn("Tags", string(tags), extra)
	ent.MentionedUsers, ent.MentionedUsersParts, extra = splitColumn("MentionedUsers", string(mentions), extra)
	ent.Notes, ent.NotesParts, extra = splitColumn("Notes", string(notesJSON), extra)

	payload, err := json.Marshal(ent)
	if err != nil {
		return nil, err
	}
	if payload, err = appendProperties(payload, extra); err != nil {
		return nil, err
	}
	if 2*utf16Len(string(payload)) > maxEntityBytes {
		return nil, fmt.Errorf("todo %s: %w", t.ID, domain.ErrTooLarge)
	}
	return payload, nil
}

// property is a continuation column written after the fixed entity fields.
type property struct {
	name  string
	value string
}

// splitColumn cuts value into parts that fit a string property. The first
// part is returned for the named column and the rest are appended to extra
// as name2, name3 and so on. parts is zero when value fits in one column.
func splitColumn(name, value string, extra []property) (string, int, []property) {
	chunks := chunkUTF16(value, maxPropertyChars)
	if len(chunks) == 1 {
		return chunks[0], 0, extra
	}
	for i, c := range chunks[1:] {
		extra = append(extra, property{name: name + strconv.Itoa(i+2), value: c})
	}
	return chunks[0], len(chunks), extra
}

// chunkUTF16 splits s on rune boundaries into pieces of at most limit UTF-16
// code units.
func chunkUTF16(s string, limit int) []string {
	var chunks []string
	start, units := 0, 0
	for i, r := range s {
		n := utf16.RuneLen(r)
		if n < 1 {
			n = 1
		}
		if units+n > limit {
			chunks = append(chunks, s[start:i])
			start, units = i, 0
		}
		units += n
	}
	return append(chunks, s[start:])
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

func appendProperties(payload []byte, extra []property) ([]byte, error) {
	if len(extra) == 0 {
		return payload, nil
	}
	out := append([]byte(nil), payload[:len(payload)-1]...)
	for _, p := range extra {
		k, err := json.Marshal(p.name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.value)
		if err != nil {
			return nil, err
		}
		out = append(out, ',')
		out = append(out, k...)
		out = append(out, ':')
		out = append(out, v...)
	}
	return append(out, '}'), nil
}

func decodeTodo(data []byte) (domain.Todo, error) {
	var ent todoEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Todo{}, err
	}
	t := domain.Todo{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Priority:    domain.Priority(ent.Priority),
		CreatedBy:   ent.PartitionKey,
		Completed:   ent.Completed,
		CreatedAt:   fromUnixNano(ent.CreatedAt),
		UpdatedAt:   fromUnixNano(ent.UpdatedAt),
		Tags:        []string{},
		Notes:       []domain.Note{},
	}
	if err := joinColumns(data, &ent); err != nil {
		return domain.Todo{}, fmt.Errorf("todo %s: %w", ent.RowKey, err)
	}
	if err := decodeList(ent.Tags, &t.Tags); err != nil {
		return domain.Todo{}, fmt.Errorf("todo %s tags: %w", ent.RowKey, err)
	}
	t.MentionedUsers = []string{}
	if err := decodeList(ent.MentionedUsers, &t.MentionedUsers); err != nil {
		return domain.Todo{}, fmt.Errorf("todo %s mentions: %w", ent.RowKey, err)
	}
	var notes []noteRecord
	if err := decodeList(ent.Notes, &notes); err != nil {
		return domain.Todo{}, fmt.Errorf("todo %s notes: %w", ent.RowKey, err)
	}
	for _, n := range notes {
		t.Notes = append(t.Notes, domain.Note{Text: n.Text, CreatedAt: fromUnixNano(n.CreatedAt)})
	}
	if ent.Completed && ent.CompletedAt != 0 {
		ts := fromUnixNano(ent.CompletedAt)
		t.CompletedAt = &ts
	}
	return t, nil
}

// joinColumns reassembles list columns that were split by splitColumn.
func joinColumns(data []byte, ent *todoEntity) error {
	if ent.TagsParts < 2 && ent.MentionedUsersParts < 2 && ent.NotesParts < 2 {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	if ent.Tags, err = joinColumn(raw, "Tags", ent.Tags, ent.TagsParts); err != nil {
		return err
	}
	if ent.MentionedUsers, err = joinColumn(raw, "MentionedUsers", ent.MentionedUsers, ent.MentionedUsersParts); err != nil {
		return err
	}
	ent.Notes, err = joinColumn(raw, "Notes", ent.Notes, ent.NotesParts)
	return err
}

func joinColumn(raw map[string]json.RawMessage, name, first string, parts int) (string, error) {
	if parts < 2 {
		return first, nil
	}
	var b strings.Builder
	b.WriteString(first)
	for i := 2; i <= parts; i++ {
		col := name + strconv.Itoa(i)
		msg, ok := raw[col]
		if !ok {
			return "", fmt.Errorf("missing column %s", col)
		}
		var part string
		if err := json.Unmarshal(msg, &part); err != nil {
			return "", fmt.Errorf("column %s: %w", col, err)
		}
		b.WriteString(part)
	}
	return b.String(), nil
}

func decodeList(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

// userEntity is the profile row of a user, keyed "id:<id>".
type userEntity struct {
	entityKeys
	UserID        string `json:"UserID"`
	Username      string `json:"Username"`
	UsernameLower string `json:"UsernameLower"`
	Email         string `json:"Email"`
	FirstName     string `json:"FirstName"`
	LastName      string `json:"LastName"`
	PasswordHash  string `json:"PasswordHash"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

// userIndexEntity maps a unique username or email to a user id.
type userIndexEntity struct {
	entityKeys
	UserID string `json:"UserID"`
}

func encodeUser(u domain.User) userEntity {
	return userEntity{
		entityKeys:    entityKeys{PartitionKey: userPartition, RowKey: userIDKey(u.ID)},
		UserID:        u.ID,
		Username:      u.Username,
		UsernameLower: lower(u.Username),
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		PasswordHash:  u.PasswordHash,
		CreatedAt:     u.CreatedAt.UnixNano(),
		CreatedAtType: edmInt64,
	}
}

func decodeUser(data []byte) (domain.User, error) {
	var ent userEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:           ent.UserID,
		Username:     ent.Username,
		Email:        ent.Email,
		FirstName:    ent.FirstName,
		LastName:     ent.LastName,
		PasswordHash: ent.PasswordHash,
		CreatedAt:    fromUnixNano(ent.CreatedAt),
	}, nil
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
