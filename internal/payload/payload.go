// Package payload provides accessors over the raw JSON parameter bags the
// server sends. Field presence is never assumed, and camelCase/snake_case
// spellings are resolved here at the boundary so downstream code only sees
// one spelling.
package payload

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

// Decode parses raw params into a map. A nil or unparseable payload yields
// an empty map, never an error; the caller decides whether missing fields
// matter.
func Decode(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// Field looks up key in m, trying the given spelling and its snake_case
// variant.
func Field(m map[string]any, key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if value, ok := m[key]; ok {
		return value, true
	}
	if snake := snakeCase(key); snake != key {
		if value, ok := m[snake]; ok {
			return value, true
		}
	}
	return nil, false
}

func String(m map[string]any, keys ...string) string {
	for _, key := range keys {
		raw, ok := Field(m, key)
		if !ok {
			continue
		}
		switch value := raw.(type) {
		case string:
			return value
		case json.Number:
			return value.String()
		}
	}
	return ""
}

func Int(m map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		raw, ok := Field(m, key)
		if !ok {
			continue
		}
		switch value := raw.(type) {
		case int:
			return int64(value), true
		case int64:
			return value, true
		case float64:
			return int64(value), true
		case json.Number:
			if parsed, err := value.Int64(); err == nil {
				return parsed, true
			}
		case string:
			text := strings.TrimSpace(value)
			if text == "" {
				continue
			}
			if parsed, err := strconv.ParseInt(text, 10, 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func Float(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		raw, ok := Field(m, key)
		if !ok {
			continue
		}
		switch value := raw.(type) {
		case float64:
			return value, true
		case int:
			return float64(value), true
		case int64:
			return float64(value), true
		case json.Number:
			if parsed, err := value.Float64(); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func Bool(m map[string]any, keys ...string) bool {
	for _, key := range keys {
		raw, ok := Field(m, key)
		if !ok {
			continue
		}
		switch value := raw.(type) {
		case bool:
			return value
		case string:
			switch strings.TrimSpace(strings.ToLower(value)) {
			case "1", "true", "yes", "on":
				return true
			}
		case int:
			return value != 0
		case float64:
			return value != 0
		}
	}
	return false
}

func Map(m map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		raw, ok := Field(m, key)
		if !ok {
			continue
		}
		if value, ok := raw.(map[string]any); ok && value != nil {
			return value
		}
	}
	return nil
}

func List(m map[string]any, keys ...string) []any {
	for _, key := range keys {
		raw, ok := Field(m, key)
		if !ok {
			continue
		}
		if value, ok := raw.([]any); ok {
			return value
		}
	}
	return nil
}

func StringList(m map[string]any, keys ...string) []string {
	raw := List(m, keys...)
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if text, ok := entry.(string); ok && strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	}
	return out
}

func MapList(m map[string]any, keys ...string) []map[string]any {
	raw := List(m, keys...)
	if raw == nil {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if value, ok := entry.(map[string]any); ok && value != nil {
			out = append(out, value)
		}
	}
	return out
}

func snakeCase(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
