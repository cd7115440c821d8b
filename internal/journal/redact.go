package journal

import (
	"encoding/json"
	"strings"
)

// looksSensitive matches JSON object keys that plausibly carry an API
// key, token, or secret, case-insensitively (spec.md §4.5).
func looksSensitive(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "key") || strings.Contains(lower, "token") || strings.Contains(lower, "secret") || strings.Contains(lower, "authorization")
}

// RedactJSON walks arbitrary JSON (object/array/scalar nesting) and
// replaces the value of any object key matching looksSensitive with "***",
// re-marshaling the result. Used before every artifact write that might
// carry request/response bodies (spec.md §4.5 invariant).
func RedactJSON(data []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		// Not JSON (e.g. already raw text) — pass through unredacted scalars
		// can't hide a key/value pair, so there's nothing to scrub.
		return data, nil
	}
	redactValue(v)
	return json.Marshal(v)
}

func redactValue(v any) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			if looksSensitive(k) {
				val[k] = "***"
				continue
			}
			redactValue(child)
		}
	case []any:
		for _, child := range val {
			redactValue(child)
		}
	}
}
