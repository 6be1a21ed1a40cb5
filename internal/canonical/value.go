// Package canonical implements the deterministic text encoding used for every
// value that is hashed or signed in a vault: audit payloads, license payloads
// and export manifests.
//
// The value model is a closed set: null, bool, int64, string, array and
// object. Objects always encode their fields sorted by key (byte order) and
// no whitespace is ever emitted, so Encode is a pure function of the value
// regardless of the order fields were set in.
package canonical

import (
	"fmt"
	"sort"

	"ev-go/internal/vaulterr"
)

// Kind identifies which of the six value kinds a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Value is an immutable-by-convention canonical value. The zero Value is null.
type Value struct {
	kind   Kind
	b      bool
	n      int64
	s      string
	items  []Value
	fields map[string]Value
}

// Field is a key/value pair used to build objects.
type Field struct {
	Key   string
	Value Value
}

func Null() Value           { return Value{} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Int(n int64) Value     { return Value{kind: KindInt, n: n} }
func String(s string) Value { return Value{kind: KindString, s: s} }

// F is shorthand for Field{Key: key, Value: v}.
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// Array builds an array value from items, preserving order.
func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, items: cp}
}

// Strings builds an array of string values.
func Strings(ss []string) Value {
	items := make([]Value, len(ss))
	for i, s := range ss {
		items[i] = String(s)
	}
	return Value{kind: KindArray, items: items}
}

// Object builds an object value. A later field with a duplicate key replaces
// an earlier one.
func Object(fields ...Field) Value {
	m := make(map[string]Value, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return Value{kind: KindObject, fields: m}
}

// With returns a copy of the object v with key set to val.
func (v Value) With(key string, val Value) Value {
	m := make(map[string]Value, len(v.fields)+1)
	for k, fv := range v.fields {
		m[k] = fv
	}
	m[key] = val
	return Value{kind: KindObject, fields: m}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean and whether v is a bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the integer and whether v is an int.
func (v Value) Int() (int64, bool) { return v.n, v.kind == KindInt }

// Str returns the string and whether v is a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Items returns the elements of an array value (nil for other kinds).
func (v Value) Items() []Value { return v.items }

// Len returns the number of array items or object fields.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.fields)
	default:
		return 0
	}
}

// Keys returns an object's keys in canonical (byte) order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the field named key of an object value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	fv, ok := v.fields[key]
	return fv, ok
}

// StringField returns a required string field. Absence or a wrong kind is a
// corrupt-vault error: it means persisted or signed data has the wrong shape.
func (v Value) StringField(key string) (string, error) {
	fv, err := v.required(key, KindString)
	if err != nil {
		return "", err
	}
	return fv.s, nil
}

// IntField returns a required integer field.
func (v Value) IntField(key string) (int64, error) {
	fv, err := v.required(key, KindInt)
	if err != nil {
		return 0, err
	}
	return fv.n, nil
}

// ArrayField returns the items of a required array field.
func (v Value) ArrayField(key string) ([]Value, error) {
	fv, err := v.required(key, KindArray)
	if err != nil {
		return nil, err
	}
	return fv.items, nil
}

// StringsField returns a required array-of-strings field.
func (v Value) StringsField(key string) ([]string, error) {
	fv, err := v.required(key, KindArray)
	if err != nil {
		return nil, err
	}
	return fv.StringSlice()
}

// StringSlice converts an array of strings into a []string.
func (v Value) StringSlice() ([]string, error) {
	if v.kind != KindArray {
		return nil, vaulterr.New(vaulterr.CorruptVault, "expected array, got %s", v.kind)
	}
	out := make([]string, len(v.items))
	for i, it := range v.items {
		if it.kind != KindString {
			return nil, vaulterr.New(vaulterr.CorruptVault, "expected string array, element %d is %s", i, it.kind)
		}
		out[i] = it.s
	}
	return out, nil
}

func (v Value) required(key string, want Kind) (Value, error) {
	if v.kind != KindObject {
		return Value{}, vaulterr.New(vaulterr.CorruptVault, "expected object, got %s", v.kind)
	}
	fv, ok := v.fields[key]
	if !ok {
		return Value{}, vaulterr.New(vaulterr.CorruptVault, "missing field %q", key)
	}
	if fv.kind != want {
		return Value{}, vaulterr.New(vaulterr.CorruptVault, "field %q: expected %s, got %s", key, want, fv.kind)
	}
	return fv, nil
}

// Equal reports whether a and b are the same canonical value.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.fields) != len(b.fields) {
			return false
		}
		for k, av := range a.fields {
			bv, ok := b.fields[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}
