package resolver

import (
	"fmt"
	"strings"
)

// normalize matches decision.Normalize exactly (collapsed whitespace,
// trimmed, lowercased) — resolver has its own copy to avoid an import
// cycle with the decision package, which itself imports nothing from here.
func normalize(x string) string {
	fields := strings.Fields(x)
	return strings.ToLower(strings.Join(fields, " "))
}

// dedupeKey returns the first-applicable key for h: id if present,
// otherwise rounded-center position + role + name (name may be empty).
// Two hittables sharing a key are considered the same candidate
// (spec.md §4.2 step 2, §8 invariant 4 — keyed on position unconditionally).
func dedupeKey(h Hittable) string {
	if h.ID != "" {
		return "id:" + h.ID
	}
	cx, cy := int(h.Center[0]+0.5), int(h.Center[1]+0.5)
	return fmt.Sprintf("pos:%d:%d:%s:%s", cx, cy, h.Role, normalize(h.Name))
}

// Dedupe removes later hittables that share a dedupeKey with an earlier
// one, keeping the first occurrence (spec.md §4.2 step 2).
func Dedupe(in []Hittable) []Hittable {
	seen := make(map[string]bool, len(in))
	out := make([]Hittable, 0, len(in))
	for _, h := range in {
		key := dedupeKey(h)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}
