package meeting

import (
	"regexp"
	"strings"
	"time"
)

var (
	nonWordPattern    = regexp.MustCompile(`[^A-Za-z0-9^]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// GenerateID creates a deterministic ID for a meeting from the spider name,
// start time and title, e.g. "cuya_elections/201901221800/x/board_meeting".
func GenerateID(spider string, start time.Time, title string) string {
	return strings.Join([]string{
		spider,
		start.Format("200601021504"),
		"x",
		NormalizeTitle(title),
	}, "/")
}

// NormalizeTitle lowercases a title and joins its words with underscores
func NormalizeTitle(title string) string {
	spaced := nonWordPattern.ReplaceAllString(title, " ")
	underscored := whitespacePattern.ReplaceAllString(spaced, "_")
	return strings.ToLower(strings.Trim(underscored, "_"))
}
