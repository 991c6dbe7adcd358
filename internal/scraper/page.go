package scraper

import (
	"context"
	"time"
)

// Page is the browser surface the engine drives. The chromedp-backed
// implementation lives in browser.go; tests use a scripted fake.
type Page interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	// HTML returns a snapshot of the rendered document.
	HTML(ctx context.Context) (string, error)
	// Evaluate runs script and unmarshals its JSON result into out.
	// out may be nil when the result is not needed.
	Evaluate(ctx context.Context, script string, out any) error
	// QueryAll waits up to timeout for at least one match. No match is
	// not an error: it returns an empty slice.
	QueryAll(ctx context.Context, selector string, timeout time.Duration) ([]Element, error)
}

// Element is a node handle returned by Page.QueryAll.
type Element interface {
	Attribute(ctx context.Context, name string) (string, error)
	// Text returns the rendered text of the node.
	Text(ctx context.Context) (string, error)
	// Query returns the first matching descendant, or nil when none
	// appears within timeout.
	Query(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	Click(ctx context.Context) error
}

// Browser is a launched browser process with its single page.
type Browser interface {
	Page() Page
	// Close tears down the page and the process. It is safe to call twice.
	Close() error
}

// Launcher starts browsers. One Launch corresponds to one session attempt.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// queryFirst returns the first element matching selector, or nil.
func queryFirst(ctx context.Context, p Page, selector string, timeout time.Duration) (Element, error) {
	els, err := p.QueryAll(ctx, selector, timeout)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}
