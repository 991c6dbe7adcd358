package scraper

import (
	"strings"
)

// NormalizeURL resolves protocol-relative and root-relative hrefs
// against origin. Anything else is returned trimmed. An empty result
// means the href cannot identify an item.
func NormalizeURL(href, origin string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return strings.TrimRight(origin, "/") + href
	default:
		return href
	}
}

// SeenSet records the normalized item URLs of one invocation.
// Entries are only ever added.
type SeenSet struct {
	urls map[string]struct{}
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{urls: make(map[string]struct{})}
}

// Add inserts url and reports whether it was new.
func (s *SeenSet) Add(url string) bool {
	if _, ok := s.urls[url]; ok {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

// Contains reports whether url was already added.
func (s *SeenSet) Contains(url string) bool {
	_, ok := s.urls[url]
	return ok
}

// Len returns the number of URLs seen.
func (s *SeenSet) Len() int {
	return len(s.urls)
}
