package cache

import (
	"github.com/google/go-cmp/cmp"
	"github.com/tenkdog/jarvis/lib/store"
	"testing"
)

func TestNormalize(t *testing.T) {
	schema := testSchema()

	tests := []struct {
		name string
		in   store.Document
		want store.Document
	}{
		{
			name: "nil document yields defaults",
			in:   nil,
			want: store.Document{
				"admins":  map[string]any{"1": map[string]any{"is_super": true}},
				"threads": map[string]any{},
				"logs":    []any{},
			},
		},
		{
			name: "missing fields are filled",
			in:   store.Document{"admins": map[string]any{}},
			want: store.Document{
				"admins":  map[string]any{},
				"threads": map[string]any{},
				"logs":    []any{},
			},
		},
		{
			name: "legacy alias is adopted",
			in: store.Document{
				"allowed_threads": map[string]any{"-1001_5": true},
			},
			want: store.Document{
				"admins":          map[string]any{"1": map[string]any{"is_super": true}},
				"threads":         map[string]any{"-1001_5": true},
				"allowed_threads": map[string]any{"-1001_5": true},
				"logs":            []any{},
			},
		},
		{
			name: "alias of the wrong kind is ignored",
			in: store.Document{
				"allowed_threads": []any{"x"},
			},
			want: store.Document{
				"admins":          map[string]any{"1": map[string]any{"is_super": true}},
				"threads":         map[string]any{},
				"allowed_threads": []any{"x"},
				"logs":            []any{},
			},
		},
		{
			name: "wrong kinds are reset",
			in: store.Document{
				"admins":  []any{},
				"threads": "nope",
				"logs":    map[string]any{},
			},
			want: store.Document{
				"admins":  map[string]any{"1": map[string]any{"is_super": true}},
				"threads": map[string]any{},
				"logs":    []any{},
			},
		},
		{
			name: "unknown fields are kept",
			in:   store.Document{"admins": map[string]any{}, "version": float64(3)},
			want: store.Document{
				"admins":  map[string]any{},
				"threads": map[string]any{},
				"logs":    []any{},
				"version": float64(3),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := schema.Normalize(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaultsAreFresh(t *testing.T) {
	schema := testSchema()
	a := schema.Defaults()
	a["admins"].(map[string]any)["2"] = true

	if _, ok := schema.Defaults()["admins"].(map[string]any)["2"]; ok {
		t.Error("Expected every call to compute a new default document")
	}
}

func TestEmptyValue(t *testing.T) {
	schema := testSchema()
	if diff := cmp.Diff(map[string]any{}, schema.EmptyValue("admins")); diff != "" {
		t.Errorf("unexpected empty map (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{}, schema.EmptyValue("logs")); diff != "" {
		t.Errorf("unexpected empty list (-want +got):\n%s", diff)
	}
	if v := schema.EmptyValue("allowed_threads"); v != nil {
		t.Errorf("Expected nil for an alias, got %v", v)
	}
}

func TestCloneValue(t *testing.T) {
	type custom struct {
		A int `json:"a"`
	}

	orig := map[string]any{
		"nested": map[string]any{"list": []any{map[string]any{"x": 1}}},
		"doc":    store.Document{"k": "v"},
		"custom": custom{A: 2},
	}
	c := cloneValue(orig).(map[string]any)

	c["nested"].(map[string]any)["list"].([]any)[0].(map[string]any)["x"] = 2
	c["doc"].(map[string]any)["k"] = "changed"

	if diff := cmp.Diff(map[string]any{"list": []any{map[string]any{"x": 1}}}, orig["nested"]); diff != "" {
		t.Errorf("clone shares nested values (-want +got):\n%s", diff)
	}
	if orig["doc"].(store.Document)["k"] != "v" {
		t.Error("clone shares documents")
	}
	if diff := cmp.Diff(map[string]any{"a": float64(2)}, c["custom"]); diff != "" {
		t.Errorf("Expected foreign types to be converted to plain JSON values (-want +got):\n%s", diff)
	}
}
