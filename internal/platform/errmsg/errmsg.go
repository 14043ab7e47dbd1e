// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

/*
Package errmsg extracts a human-readable message from arbitrary failure values.

Auth providers disagree about error shapes: some return {"msg": ...}, some
{"message": ...}, some nest the real payload under "error". Handlers and the
action facade call [Normalize] so the operator always sees a sentence, never
a raw payload dump.

Extraction order:

 1. Plain strings pass through unchanged.
 2. A "message" field wins, then "msg", then "error_description".
 3. An "error" field is unwrapped recursively (strings and nested objects).
 4. Plain Go errors fall back to Error().
 5. Anything else is JSON-serialized, with fmt as the final fallback.

Normalize never panics and never returns an unserializable value.
*/
package errmsg

import (
	"encoding/json"
	"fmt"
)

// maxDepth bounds recursion through nested "error" fields so a cyclic or
// adversarial payload cannot blow the stack.
const maxDepth = 8

// Normalize converts any failure value into a display-safe message string.
func Normalize(value any) string {
	return normalize(value, 0)
}

func normalize(value any, depth int) string {
	if value == nil {
		return ""
	}
	if depth > maxDepth {
		return "unknown error"
	}

	if s, ok := value.(string); ok {
		return s
	}

	// Look at the value through a generic JSON lens. Structs with tagged
	// fields and decoded payload maps both land here.
	if m, ok := toMap(value); ok {
		if s, ok := m["message"].(string); ok && s != "" {
			return s
		}
		if s, ok := m["msg"].(string); ok && s != "" {
			return s
		}
		if nested, exists := m["error"]; exists && nested != nil {
			if s, ok := nested.(string); ok && s != "" {
				return s
			}
			if extracted := normalize(nested, depth+1); extracted != "" {
				return extracted
			}
		}
		if s, ok := m["error_description"].(string); ok && s != "" {
			return s
		}
	}

	if err, ok := value.(error); ok {
		return err.Error()
	}

	if raw, err := json.Marshal(value); err == nil {
		return string(raw)
	}

	return fmt.Sprint(value)
}

// toMap exposes value as a map[string]any when it is one, or when it
// serializes to a non-empty JSON object.
func toMap(value any) (map[string]any, bool) {
	if m, ok := value.(map[string]any); ok {
		return m, true
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return nil, false
	}
	return m, true
}
