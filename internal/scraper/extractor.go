package scraper

import (
	"context"
	"errors"
	"html"
	"time"

	"deeppoint-scraper/internal/metrics"
	"deeppoint-scraper/internal/models"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// rawListing is an unvalidated item as read from the page.
type rawListing struct {
	Href        string `json:"href"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Likes       string `json:"likes"`
	PublishTime string `json:"publish_time,omitempty"`
}

// Strategy is one extraction tactic. Run reads candidate listings from
// the page; the chain validates, normalizes and deduplicates them.
type Strategy struct {
	Name        string
	MinTitleLen int
	Run         func(ctx context.Context, p Page) ([]rawListing, error)
}

// Extraction reports the outcome of one chain evaluation.
type Extraction struct {
	Items    []models.ContentItem
	Strategy string // empty when no strategy produced items
	// SuspectedChallenge is set when the snapshot parse found nothing
	// and the markup carries challenge keywords.
	SuspectedChallenge bool
	Indicator          string
}

// suspectedChallengeError is returned by a strategy that came up empty
// on markup that looks like a challenge page.
type suspectedChallengeError struct {
	indicator string
}

func (e *suspectedChallengeError) Error() string {
	return "no listings; markup contains challenge marker " + e.indicator
}

// ExtractionChain evaluates strategies in order; the first to yield at
// least one new item wins and results are never merged across strategies.
type ExtractionChain struct {
	origin     string
	strategies []Strategy
	sanitizer  *bluemonday.Policy
	now        func() time.Time
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// ChainOption customizes an ExtractionChain.
type ChainOption func(*ExtractionChain)

// WithStrategies replaces the default strategy list.
func WithStrategies(strategies ...Strategy) ChainOption {
	return func(c *ExtractionChain) { c.strategies = strategies }
}

// WithClock sets the capture timestamp source.
func WithClock(now func() time.Time) ChainOption {
	return func(c *ExtractionChain) { c.now = now }
}

// WithChainMetrics records emitted items per strategy.
func WithChainMetrics(m *metrics.Metrics) ChainOption {
	return func(c *ExtractionChain) { c.metrics = m }
}

// NewExtractionChain builds the default chain: bulk script, selector
// cascade, static markup. detector supplies the keywords used when the
// static parse comes up empty.
func NewExtractionChain(origin string, detector *ChallengeDetector, logger *zap.Logger, opts ...ChainOption) *ExtractionChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ExtractionChain{
		origin:    origin,
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
		logger:    logger,
	}
	c.strategies = []Strategy{
		{Name: StrategyBulkScript, MinTitleLen: BulkMinTitleLen, Run: runBulkScript},
		{Name: StrategySelectorCascade, MinTitleLen: CascadeMinTitleLen, Run: runSelectorCascade},
		{Name: StrategyStaticMarkup, MinTitleLen: StaticMinTitleLen, Run: staticMarkupStrategy(detector)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract returns the items of the first successful strategy, adding
// their URLs to seen. Strategy failures fall through to the next one.
func (c *ExtractionChain) Extract(ctx context.Context, p Page, seen *SeenSet) Extraction {
	var result Extraction
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			return result
		}
		raws, err := s.Run(ctx, p)
		if err != nil {
			var sce *suspectedChallengeError
			if errors.As(err, &sce) {
				result.SuspectedChallenge = true
				result.Indicator = sce.indicator
			}
			c.logger.Debug("Extraction strategy failed", zap.String("strategy", s.Name), zap.Error(err))
			continue
		}

		items := c.accept(raws, s.MinTitleLen, seen)
		c.logger.Debug("Extraction strategy finished",
			zap.String("strategy", s.Name),
			zap.Int("raw", len(raws)),
			zap.Int("accepted", len(items)),
		)
		if len(items) > 0 {
			c.metrics.Extracted(s.Name, len(items))
			return Extraction{Items: items, Strategy: s.Name}
		}
	}
	return result
}

// accept validates raw listings. Normalization happens before the
// seen check so equivalent URL forms collapse to one item.
func (c *ExtractionChain) accept(raws []rawListing, minTitleLen int, seen *SeenSet) []models.ContentItem {
	if minTitleLen < 1 {
		minTitleLen = 1
	}
	var items []models.ContentItem
	for _, r := range raws {
		url := NormalizeURL(r.Href, c.origin)
		if url == "" {
			continue
		}
		title := Truncate(c.sanitizeText(r.Title), MaxTitleLen)
		if TextLen(title) < minTitleLen {
			continue
		}
		if !seen.Add(url) {
			continue
		}

		author := Truncate(c.sanitizeText(r.Author), MaxTitleLen)
		if author == "" {
			author = UnknownAuthor
		}
		likes := CleanWhitespace(r.Likes)
		if likes == "" {
			likes = ZeroLikes
		}

		items = append(items, models.ContentItem{
			URL:         url,
			Title:       title,
			Author:      author,
			Likes:       likes,
			CapturedAt:  c.now(),
			PublishTime: CleanWhitespace(r.PublishTime),
		})
	}
	return items
}

// sanitizeText strips markup and entities and collapses whitespace.
func (c *ExtractionChain) sanitizeText(text string) string {
	if text == "" {
		return ""
	}
	sanitized := c.sanitizer.Sanitize(text)
	return CleanWhitespace(html.UnescapeString(sanitized))
}

// runBulkScript reads every listing with a single in-page evaluation.
func runBulkScript(ctx context.Context, p Page) ([]rawListing, error) {
	var raws []rawListing
	if err := p.Evaluate(ctx, listingScript, &raws); err != nil {
		return nil, err
	}
	return raws, nil
}

// runSelectorCascade walks CascadeSelectors and stops at the first one
// whose candidates verifiably link to an item.
func runSelectorCascade(ctx context.Context, p Page) ([]rawListing, error) {
	for _, selector := range CascadeSelectors {
		els, err := p.QueryAll(ctx, selector, CascadeLookup)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		if len(els) > MaxCascadeInspect {
			els = els[:MaxCascadeInspect]
		}

		var raws []rawListing
		for _, el := range els {
			if len(raws) >= MaxCascadeParse {
				break
			}
			href := itemHref(ctx, el)
			if href == "" {
				continue
			}
			title, _ := el.Text(ctx)
			raws = append(raws, rawListing{
				Href:   href,
				Title:  title,
				Author: descendantText(ctx, el, `[class*="author"], [class*="name"]`),
				Likes:  likesText(descendantText(ctx, el, `[class*="like"], [class*="count"]`)),
			})
		}
		if len(raws) > 0 {
			return raws, nil
		}
	}
	return nil, nil
}

// itemHref returns the item link of el, from its own href or a
// descendant anchor.
func itemHref(ctx context.Context, el Element) string {
	if href, err := el.Attribute(ctx, "href"); err == nil && containsItemMarker(href) {
		return href
	}
	link, err := el.Query(ctx, ItemLinkSelector, DescendantLookup)
	if err != nil || link == nil {
		return ""
	}
	href, err := link.Attribute(ctx, "href")
	if err != nil || !containsItemMarker(href) {
		return ""
	}
	return href
}

func descendantText(ctx context.Context, el Element, selector string) string {
	child, err := el.Query(ctx, selector, DescendantLookup)
	if err != nil || child == nil {
		return ""
	}
	text, err := child.Text(ctx)
	if err != nil {
		return ""
	}
	return text
}

// staticMarkupStrategy parses a document snapshot with fixed selectors.
func staticMarkupStrategy(detector *ChallengeDetector) func(ctx context.Context, p Page) ([]rawListing, error) {
	return func(ctx context.Context, p Page) ([]rawListing, error) {
		snapshot, err := p.HTML(ctx)
		if err != nil {
			return nil, err
		}
		if snapshot == "" {
			return nil, nil
		}
		raws, err := ParseStaticListings(snapshot)
		if err != nil {
			return nil, err
		}
		if len(raws) == 0 {
			if ind, ok := ScanChallengeMarkers(snapshot, detector); ok {
				return nil, &suspectedChallengeError{indicator: ind}
			}
		}
		return raws, nil
	}
}
