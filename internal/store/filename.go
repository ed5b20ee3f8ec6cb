package store

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9_-]+`)
	leadingDash  = regexp.MustCompile(`^-+`)
	trailingDash = regexp.MustCompile(`-+$`)
)

// SuggestedFilename builds "<host>-<timestamp>-<shortid>.png" for a
// captured page. The host is sanitized to [a-z0-9_-]; an unparsable URL
// falls back to "page".
func SuggestedFilename(pageURL string, now time.Time) string {
	host := "page"
	if u, err := url.Parse(pageURL); err == nil && u.Hostname() != "" {
		host = sanitize(u.Hostname())
	}
	short := uuid.NewString()[:8]
	return fmt.Sprintf("%s-%s-%s.png", host, now.Format("20060102-150405"), short)
}

// sanitize lowercases and collapses invalid filename characters to "-",
// stripping leading/trailing dashes. Empty results fall back to "page".
func sanitize(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	result := invalidChars.ReplaceAllString(lower, "-")
	result = leadingDash.ReplaceAllString(result, "")
	result = trailingDash.ReplaceAllString(result, "")

	if len(result) > 64 {
		result = result[:64]
	}
	if result == "" {
		return "page"
	}
	return result
}
