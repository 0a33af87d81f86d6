package payload

import (
	"encoding/json"
	"testing"
)

func TestDecodeToleratesGarbage(t *testing.T) {
	if m := Decode(nil); m == nil || len(m) != 0 {
		t.Fatalf("expected empty map for nil input, got %v", m)
	}
	if m := Decode(json.RawMessage(`not json`)); m == nil || len(m) != 0 {
		t.Fatalf("expected empty map for garbage, got %v", m)
	}
	if m := Decode(json.RawMessage(`[1,2]`)); m == nil || len(m) != 0 {
		t.Fatalf("expected empty map for non-object, got %v", m)
	}
}

func TestStringTriesBothSpellings(t *testing.T) {
	camel := map[string]any{"threadId": "t-1"}
	snake := map[string]any{"thread_id": "t-2"}
	if got := String(camel, "threadId"); got != "t-1" {
		t.Fatalf("camel lookup: got %q", got)
	}
	if got := String(snake, "threadId"); got != "t-2" {
		t.Fatalf("snake fallback: got %q", got)
	}
	if got := String(nil, "threadId"); got != "" {
		t.Fatalf("nil map: got %q", got)
	}
}

func TestStringAlternateKeys(t *testing.T) {
	m := map[string]any{"content": "hello"}
	if got := String(m, "text", "content"); got != "hello" {
		t.Fatalf("expected fallback key, got %q", got)
	}
}

func TestIntConversions(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  int64
		ok    bool
	}{
		{"float64", float64(42), 42, true},
		{"int", 7, 7, true},
		{"number_string", "19", 19, true},
		{"empty_string", "", 0, false},
		{"word", "nope", 0, false},
	}
	for _, tc := range cases {
		got, ok := Int(map[string]any{"n": tc.value}, "n")
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: got (%d,%v), want (%d,%v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBoolSpellings(t *testing.T) {
	for _, value := range []any{true, "true", "yes", "1", 1, float64(2)} {
		if !Bool(map[string]any{"flag": value}, "flag") {
			t.Fatalf("expected true for %v", value)
		}
	}
	for _, value := range []any{false, "no", "0", 0} {
		if Bool(map[string]any{"flag": value}, "flag") {
			t.Fatalf("expected false for %v", value)
		}
	}
}

func TestStringListSkipsBlanks(t *testing.T) {
	m := map[string]any{"argv": []any{"npm", "", "install", 3}}
	got := StringList(m, "argv")
	if len(got) != 2 || got[0] != "npm" || got[1] != "install" {
		t.Fatalf("unexpected list: %v", got)
	}
}

func TestMapListFiltersNonMaps(t *testing.T) {
	m := map[string]any{"items": []any{map[string]any{"id": "a"}, "junk", nil}}
	got := MapList(m, "items")
	if len(got) != 1 || got[0]["id"] != "a" {
		t.Fatalf("unexpected list: %v", got)
	}
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"threadId":      "thread_id",
		"parentThreadId": "parent_thread_id",
		"id":            "id",
	}
	for in, want := range cases {
		if got := snakeCase(in); got != want {
			t.Fatalf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
