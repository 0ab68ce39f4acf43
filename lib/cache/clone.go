package cache

import (
	"encoding/json"
	"github.com/tenkdog/jarvis/lib/store"
)

// cloneValue returns a deep copy of a JSON-compatible value. Values of other Go types
// (typed maps, slices, structs) are converted to their JSON form first, so a document only
// ever holds map[string]any, []any and scalars.
func cloneValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case store.Document:
		return cloneValue(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return val
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			Logger.Warningf("dropping value of type %T: %v", v, err)
			return nil
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil
		}
		return out
	}
}

// cloneDocument returns a deep copy of doc
func cloneDocument(doc store.Document) store.Document {
	if doc == nil {
		return nil
	}
	return store.Document(cloneValue(map[string]any(doc)).(map[string]any))
}
