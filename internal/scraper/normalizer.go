package scraper

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// rewrite is one ordered normalization pass.
type rewrite struct {
	re   *regexp.Regexp
	repl string
}

// cleanPasses run in order. The leading username must go before
// whitespace is collapsed, and compound reply phrases before the bare
// reply token, or fragments of them survive.
var cleanPasses = []rewrite{
	// leading username and its ellipsis separator
	{regexp.MustCompile(`^@?[\p{Han}\p{L}\p{N}_\-□·.]+\s*\d*\s*(?:\.{2,}|…+)\s*`), ""},

	// relative time
	{regexp.MustCompile(`\s*\d+\s*(?:分钟|[分小时天周月年]+)前\s*`), " "},
	{regexp.MustCompile(`\s*(?:昨天|刚刚|今天)\s*`), " "},
	{regexp.MustCompile(`(?i)\s*\b\d+\s*(?:seconds?|secs?|minutes?|mins?|hours?|hrs?|days?|weeks?|months?|years?)\s+ago\b\s*`), " "},
	{regexp.MustCompile(`(?i)\s*\b(?:yesterday|just now|today)\b\s*`), " "},

	// region tag
	{regexp.MustCompile(`\s*[·•]\s*[\p{Han}\p{L}]{2,10}\s*`), " "},

	// action chrome
	{regexp.MustCompile(`\s*展开\d*条回复\s*`), " "},
	{regexp.MustCompile(`\s*收起回复\s*`), " "},
	{regexp.MustCompile(`\s*查看更多回复\s*`), " "},
	{regexp.MustCompile(`(?i)\s*\bexpand\s*\d*\s*(?:more\s+)?repl(?:y|ies)\b\s*`), " "},
	{regexp.MustCompile(`(?i)\s*\b(?:collapse|hide)\s+repl(?:y|ies)\b\s*`), " "},
	{regexp.MustCompile(`(?i)\s*\bview\s+more\s+repl(?:y|ies)\b\s*`), " "},
	{regexp.MustCompile(`\s*\d*\s*分享\s*`), " "},
	{regexp.MustCompile(`(?i)\s*\d*\s*\bshare\b\s*`), " "},
	{regexp.MustCompile(`\s*回复\s*`), " "},
	{regexp.MustCompile(`(?i)\s*\breply\b\s*`), " "},

	// bare like counts
	{regexp.MustCompile(`\s+\d+\s*$`), ""},
	{regexp.MustCompile(`^\d+\s+`), ""},

	// author badge
	{regexp.MustCompile(`\s*作者\s*`), " "},
	{regexp.MustCompile(`(?i)\s*\bauthor\b\s*`), " "},

	{regexp.MustCompile(`\s+`), " "},
}

// Clean strips platform chrome from raw comment text: usernames,
// timestamps, region tags, button labels and bare counters.
// It is pure and deterministic.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	text := norm.NFC.String(raw)
	for _, p := range cleanPasses {
		text = p.re.ReplaceAllString(text, p.repl)
	}
	return strings.TrimSpace(text)
}

// Informative reports whether cleaned text carries more than two characters.
func Informative(text string) bool {
	return TextLen(text) >= MinCommentLen
}

// TextLen counts characters rather than bytes.
func TextLen(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate cuts text to at most n characters.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for pos := range text {
		if count == n {
			return text[:pos]
		}
		count++
	}
	return text
}
