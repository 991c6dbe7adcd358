// Package scraper provides constants used throughout the scraping functionality.
package scraper

import "time"

// Timeout constants
const (
	CascadeLookup       = 3 * time.Second
	DescendantLookup    = 300 * time.Millisecond
	FallbackLookup      = 3 * time.Second
	FallbackLookupShort = 2 * time.Second
)

// Listing extraction
const (
	ItemLinkMarker      = "/video/"
	ItemLinkSelector    = `a[href*="/video/"]`
	MaxCascadeInspect   = 100
	MaxCascadeParse     = 50
	MaxTitleLen         = 200
	BulkMinTitleLen     = 4
	CascadeMinTitleLen  = 3
	StaticMinTitleLen   = 1
	StaticChallengeScan = 10000
	UnknownAuthor       = "unknown"
	ZeroLikes           = "0"
)

// Comment harvesting
const (
	MaxDescriptionLen    = 500
	MaxCommentRawLen     = 500
	ScrollSteps          = 3
	MinCommentLen        = 3 // kept when length after cleaning is > 2
	MinFallbackCommentLn = 6 // kept when length after cleaning is > 5
	ContinuePhrase       = "继续看评论"
)

// Strategy names, also used as metric labels.
const (
	StrategyBulkScript      = "bulk-script"
	StrategySelectorCascade = "selector-cascade"
	StrategyStaticMarkup    = "static-markup"
)

// CascadeSelectors are tried most specific first.
var CascadeSelectors = []string{
	`a[href*="/video/"]`,
	`li a[href*="/video/"]`,
	`div[class*="video"] a`,
	`ul li`,
}

// Static markup selectors of the search result list.
const (
	StaticItemSelector    = "li.SwZLHMKk"
	StaticTitleSelector   = "div.VDYK8Xd7"
	StaticAuthorSelector  = "span.MZNczJmS"
	StaticLinkSelector    = "a.hY8lWHgA"
	StaticTimeSelector    = "span.faDtinfi"
	StaticLikesSelector   = "span.cIiU4Muu"
	StaticChallengeMarker = "验证"
)

// CommentTriggerSelectors open the lazily loaded comment panel.
var CommentTriggerSelectors = []string{
	`div[data-e2e="comment-icon"]`,
	`div[class*="comment"]`,
	`span[class*="comment"]`,
	`div[data-e2e="feed-comment-icon"]`,
}

// OverlaySelectors match the login guide that gates further comments.
var OverlaySelectors = []string{
	`div.related-video-card-login-guide__footer`,
	`div[class*="footer-close"]`,
	`div[class*="login-guide"] div[class*="footer"]`,
}

// CommentItemSelectors are the primary and secondary comment containers
// for the element-text fallback.
var CommentItemSelectors = []string{
	`div[data-e2e="comment-item"]`,
	`div[class*="comment-item"]`,
}
