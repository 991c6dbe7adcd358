// Package models defines the data structures produced by the search scraper.
// It includes the item and comment records, HTTP response envelopes and
// the typed errors surfaced to callers.
package models

import "time"

// ContentItem is one search result. Its identity is the normalized URL.
type ContentItem struct {
	URL          string        `json:"video_url"`
	Title        string        `json:"title"`
	Author       string        `json:"author"`
	Likes        string        `json:"likes"` // platform-native format, e.g. "1.2万"
	CapturedAt   time.Time     `json:"collected_at"`
	PublishTime  string        `json:"publish_time,omitempty"`
	Description  string        `json:"description,omitempty"`
	Comments     []CommentItem `json:"comments,omitempty"`
	CommentCount *int          `json:"comment_count,omitempty"`
}

// WithComments returns a copy of the item carrying the given comments.
// CommentCount is always set, even when no comments were obtained.
func (c ContentItem) WithComments(comments []CommentItem) ContentItem {
	n := len(comments)
	c.Comments = comments
	c.CommentCount = &n
	return c
}

// CommentItem is a single normalized comment nested in a ContentItem.
type CommentItem struct {
	Text       string    `json:"text"`
	Username   string    `json:"username"`
	Likes      string    `json:"likes"`
	CapturedAt time.Time `json:"collected_at"`
}

// SearchResponse represents a successful search result
type SearchResponse struct {
	Items    []ContentItem `json:"items"`
	Metadata Metadata      `json:"metadata"`
}

// BlockedResponse represents when a search is stopped by a bot challenge
type BlockedResponse struct {
	Error     string   `json:"error"`
	Provider  string   `json:"provider"`
	Indicator string   `json:"indicator,omitempty"`
	Advice    string   `json:"advice"`
	Metadata  Metadata `json:"metadata"`
}

// ErrorResponse represents error responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Metadata contains request metadata
type Metadata struct {
	Keyword      string    `json:"keyword"`
	Mode         string    `json:"mode"`
	ItemCount    int       `json:"itemCount"`
	CommentCount int       `json:"commentCount,omitempty"`
	ScrapedAt    time.Time `json:"scrapedAt"`
	DurationMs   int64     `json:"durationMs"`
	// Partial is set when the request deadline cut a deep search short;
	// unfinished items carry no comments.
	Partial bool `json:"partial,omitempty"`
}
