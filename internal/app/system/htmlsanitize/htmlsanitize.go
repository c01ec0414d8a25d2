// Package htmlsanitize cleans user-authored HTML (booking notes) before it is
// stored, so every reader can render it without re-sanitizing.
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// policy is safe for concurrent use once built.
var policy = bluemonday.UGCPolicy()

// Sanitize strips scripts, event handlers, dangerous URLs and embedded frames
// from s, keeping basic formatting. The result is trimmed.
func Sanitize(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return strings.TrimSpace(policy.Sanitize(s))
}
