package compliance

import (
	"bytes"
	"encoding/json"
)

// Optional is a per-field patch value: unset (leave unchanged), null (clear)
// or a value. Absent JSON keys never call UnmarshalJSON, so they stay unset.
type Optional[T any] struct {
	set   bool
	null  bool
	value T
}

func Unset[T any]() Optional[T] { return Optional[T]{} }

func Null[T any]() Optional[T] { return Optional[T]{set: true, null: true} }

func Value[T any](v T) Optional[T] { return Optional[T]{set: true, value: v} }

func (o Optional[T]) IsSet() bool { return o.set }

func (o Optional[T]) IsNull() bool { return o.set && o.null }

// Get returns the value when one was supplied.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set && !o.null
}

// Ptr is nil for an explicit null. Callers check IsSet first.
func (o Optional[T]) Ptr() *T {
	if !o.set || o.null {
		return nil
	}
	v := o.value
	return &v
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// MapOptional converts the carried value, keeping unset and null as they are.
func MapOptional[T, U any](o Optional[T], fn func(T) (U, error)) (Optional[U], error) {
	if !o.set {
		return Unset[U](), nil
	}
	if o.null {
		return Null[U](), nil
	}
	v, err := fn(o.value)
	if err != nil {
		return Optional[U]{}, err
	}
	return Value(v), nil
}
