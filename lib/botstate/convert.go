package botstate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// idKey renders a user or chat id the way it is stored as a map key
func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// asMap returns v as a JSON object, an empty one if v is not an object
func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

// asList returns v as a JSON array, an empty one if v is not an array
func asList(v any) []any {
	if l, ok := v.([]any); ok && l != nil {
		return l
	}
	return []any{}
}

// toInt converts a decoded JSON number (or a value written by this process) to int64.
// Anything else yields 0 and false.
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		return int64(f), err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// toBool reads a JSON boolean, falling back to def for any other value
func toBool(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// toString renders scalar JSON values, "" for nil and objects
func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	}
	if i, ok := toInt(v); ok {
		return idKey(i)
	}
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	return ""
}
