package cache

import (
	"github.com/tenkdog/jarvis/lib/store"
)

// Kind is the JSON type a top level field of a document must have
type Kind int

const (
	KindMap  Kind = iota // JSON object (map[string]any)
	KindList             // JSON array ([]any)
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Field describes one top level key of a dataset document
type Field struct {
	Key  string
	Kind Kind
	// Aliases are legacy keys whose value is adopted when Key is absent. The first alias
	// holding a value of the right kind wins.
	Aliases []string
	// Default computes the value used when the field is missing or has the wrong kind.
	// If nil, the empty value of Kind is used.
	Default func() any
}

// Schema lists the known fields of a dataset. Fields not listed in the schema are kept
// untouched by normalization.
type Schema struct {
	Fields []Field
}

// Defaults computes a fresh document holding the default of every field
func (s Schema) Defaults() store.Document {
	doc := make(store.Document, len(s.Fields))
	for _, f := range s.Fields {
		doc[f.Key] = f.defaultValue()
	}
	return doc
}

// Normalize fills missing fields and resets fields of the wrong kind, in place.
// A nil document is replaced by the defaults. Unknown fields are preserved.
func (s Schema) Normalize(doc store.Document) store.Document {
	if doc == nil {
		return s.Defaults()
	}
	for _, f := range s.Fields {
		v, ok := doc[f.Key]
		if !ok {
			if alias, found := f.alias(doc); found {
				doc[f.Key] = alias
				continue
			}
			doc[f.Key] = f.defaultValue()
			continue
		}
		if !f.Kind.matches(v) {
			doc[f.Key] = f.defaultValue()
		}
	}
	return doc
}

// EmptyValue returns the value Get reports for an absent key: the empty value of the
// field kind, or nil if the key is not part of the schema.
func (s Schema) EmptyValue(key string) any {
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Kind.empty()
		}
	}
	return nil
}

func (f Field) defaultValue() any {
	if f.Default != nil {
		if v := f.Default(); f.Kind.matches(v) {
			return v
		}
	}
	return f.Kind.empty()
}

func (f Field) alias(doc store.Document) (any, bool) {
	for _, a := range f.Aliases {
		if v, ok := doc[a]; ok && f.Kind.matches(v) {
			return cloneValue(v), true
		}
	}
	return nil, false
}

func (k Kind) matches(v any) bool {
	switch k {
	case KindMap:
		m, ok := v.(map[string]any)
		return ok && m != nil
	case KindList:
		l, ok := v.([]any)
		return ok && l != nil
	}
	return false
}

func (k Kind) empty() any {
	if k == KindList {
		return []any{}
	}
	return map[string]any{}
}
