package llmclient

import "strings"

// stripCodeFences removes a leading/trailing ```-fenced block (optionally
// tagged ```json) around content, per spec.md §4.4 "content string is
// stripped of ```-fences and parsed as JSON".
func stripCodeFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx != -1 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
