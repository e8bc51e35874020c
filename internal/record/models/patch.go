package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FieldKind tags the value type of a declaration field.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
)

// FieldValue is a tagged scalar. Declarations are flat key/value maps;
// the tag makes the projection fold total: merging a key with a value of
// a different kind is detected at validation time instead of silently
// replacing one type with another mid-log.
type FieldValue struct {
	Kind FieldKind
	Str  string
	Num  float64
	Bool bool
}

// String builds a string field value.
func String(v string) FieldValue { return FieldValue{Kind: KindString, Str: v} }

// Number builds a numeric field value.
func Number(v float64) FieldValue { return FieldValue{Kind: KindNumber, Num: v} }

// Boolean builds a boolean field value.
func Boolean(v bool) FieldValue { return FieldValue{Kind: KindBool, Bool: v} }

// Value returns the untyped representation, for serialization.
func (f FieldValue) Value() any {
	switch f.Kind {
	case KindNumber:
		return f.Num
	case KindBool:
		return f.Bool
	default:
		return f.Str
	}
}

// Equal compares kind and value.
func (f FieldValue) Equal(other FieldValue) bool { return f == other }

// MarshalJSON serializes the scalar without the tag; the tag is
// re-derived on unmarshal from the JSON type.
func (f FieldValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Value())
}

// UnmarshalJSON derives the kind tag from the JSON value type.
func (f *FieldValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		*f = String(v)
	case float64:
		*f = Number(v)
	case bool:
		*f = Boolean(v)
	default:
		return fmt.Errorf("unsupported declaration field type %T", raw)
	}
	return nil
}

// Patch is a sparse set of declaration field updates. Merge order is
// defined by the action log: later actions win key by key (shallow
// merge); a draft overlay, when present, merges last.
type Patch map[string]FieldValue

// Apply shallow-merges the patch over the accumulator in place. The
// caller is expected to have run CheckCompatible first; Apply itself
// never drops a key.
func (p Patch) Apply(acc map[string]FieldValue) {
	for key, value := range p {
		acc[key] = value
	}
}

// CheckCompatible reports the first key whose kind differs from the
// value already accumulated. Used to reject a payload before append.
func (p Patch) CheckCompatible(acc map[string]FieldValue) error {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		existing, ok := acc[key]
		if !ok {
			continue
		}
		if existing.Kind != p[key].Kind {
			return fmt.Errorf("field %q changes type from %s to %s", key, existing.Kind, p[key].Kind)
		}
	}
	return nil
}

// Clone returns a copy so callers can mutate safely.
func (p Patch) Clone() Patch {
	out := make(Patch, len(p))
	for key, value := range p {
		out[key] = value
	}
	return out
}
