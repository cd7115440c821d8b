// Package imgutil has the small screenshot-framing helpers shared by the
// driver, the brain HTTP handlers, and the LLM client: stripping an incoming data-URL prefix
// and building the outgoing one (spec.md §8 invariant 7).
package imgutil

import (
	"encoding/base64"
	"strings"
)

// StripDataURLPrefix removes a leading "data:image/...;base64," prefix if
// present, returning bare base64 either way.
func StripDataURLPrefix(s string) string {
	if idx := strings.Index(s, ";base64,"); idx != -1 && strings.HasPrefix(s, "data:") {
		return s[idx+len(";base64,"):]
	}
	return s
}

// DecodeMaybeDataURL strips any data-URL prefix and base64-decodes the
// remainder into raw image bytes.
func DecodeMaybeDataURL(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(StripDataURLPrefix(s))
}

// ToPNGDataURL builds exactly "data:image/png;base64,<base64(b)>" — the
// only framing the Critic/Assistant request body is allowed to carry
// (spec.md §8 invariant 7).
func ToPNGDataURL(b []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b)
}
