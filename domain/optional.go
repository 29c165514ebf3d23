package domain

import (
	"bytes"

	"github.com/bytedance/sonic"
)

// Optional distinguishes an absent field from one that was sent, including an
// explicit null. Decoding a JSON object leaves absent fields with Set == false.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// UnmarshalJSON marks the field as present and decodes its value.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return sonic.Unmarshal(data, &o.Value)
}

// MarshalJSON encodes the value, or null when absent or null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return sonic.Marshal(o.Value)
}
