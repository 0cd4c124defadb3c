package job

import (
	"regexp"
	"unicode/utf8"
)

var (
	reDataURL    = regexp.MustCompile(`(?is)\bdata:(image|video|audio)/[a-z0-9+.-]+;base64,[a-z0-9+/=\r\n]+`)
	reLongBase64 = regexp.MustCompile(`[A-Za-z0-9+/]{512,}={0,2}`)
)

const maxErrorBody = 512

// redactMedia strips media payloads from text headed for logs and errors.
// Task runners echo the payload back on some failures.
func redactMedia(s string) string {
	s = reDataURL.ReplaceAllString(s, "[REDACTED media]")
	s = reLongBase64.ReplaceAllString(s, "[REDACTED media]")
	if len(s) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
