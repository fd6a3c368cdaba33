package token

// DefaultMaxDepth bounds the recursive payload walk. Third-party payloads
// are not under our control and may nest arbitrarily.
const DefaultMaxDepth = 4

// priorityFields are the canonical locations for a token inside a keyed
// payload. They are checked before any other field is descended into, so
// an unrelated long string elsewhere in the tree cannot win over them.
var priorityFields = []string{"token", "accessToken", "session_token", "sessionToken"}

// Extract walks a decoded JSON payload looking for a plausible token.
// The payload is treated as the usual encoding/json shapes: string,
// []any sequence, map[string]any mapping; anything else is a miss.
// Recursion stops beyond maxDepth, so cyclic-looking or pathologically
// nested payloads cannot blow the stack.
func Extract(payload any, maxDepth int) (string, bool) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return walk(payload, maxDepth)
}

func walk(payload any, depth int) (string, bool) {
	if depth < 0 {
		return "", false
	}

	switch v := payload.(type) {
	case string:
		if Plausible(v) {
			return v, true
		}
		return "", false

	case []any:
		for _, elem := range v {
			if tok, ok := walk(elem, depth-1); ok {
				return tok, true
			}
		}
		return "", false

	case map[string]any:
		// Named-field priority pass first.
		for _, field := range priorityFields {
			if raw, present := v[field]; present {
				if s, isStr := raw.(string); isStr && Plausible(s) {
					return s, true
				}
			}
		}
		for _, raw := range v {
			if tok, ok := walk(raw, depth-1); ok {
				return tok, true
			}
		}
		return "", false

	default:
		return "", false
	}
}
