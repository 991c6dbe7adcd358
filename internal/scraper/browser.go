package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"deeppoint-scraper/internal/config"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromeLauncher starts headless Chrome through chromedp.
type ChromeLauncher struct {
	browser    config.BrowserConfig
	navTimeout time.Duration
	logger     *zap.Logger
}

// NewChromeLauncher creates a launcher for the given browser settings.
// navTimeout bounds every Navigate call; zero means no extra bound.
func NewChromeLauncher(browser config.BrowserConfig, navTimeout time.Duration, logger *zap.Logger) *ChromeLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeLauncher{browser: browser, navTimeout: navTimeout, logger: logger}
}

// Launch starts a Chrome process with one tab and registers the stealth
// script so it runs before any page script on every new document.
// The process lives until Close is called or ctx is cancelled.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, BuildChromeOptions(l.browser)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	b := &chromeBrowser{
		cancelTab:   tabCancel,
		cancelAlloc: allocCancel,
	}
	b.page = &chromePage{ctx: tabCtx, navTimeout: l.navTimeout}

	var languages []string
	if l.browser.Language != "" {
		languages = []string{l.browser.Language, "zh", "en"}
	}
	stealth := GetStealthScript(languages)

	// First Run starts the process.
	err := chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealth).Do(ctx)
			return err
		}),
	)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	l.logger.Debug("Chrome launched",
		zap.Bool("headful", l.browser.Headful),
		zap.Bool("proxy", l.browser.ProxyServer != ""),
	)
	return b, nil
}

type chromeBrowser struct {
	page        *chromePage
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
}

func (b *chromeBrowser) Page() Page { return b.page }

func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		// Cancelling the tab context closes the target; the allocator
		// cancel then waits for the process to exit.
		b.cancelTab()
		b.cancelAlloc()
	})
	return nil
}

type chromePage struct {
	ctx        context.Context
	navTimeout time.Duration
}

// run executes actions on the tab, bounded by the caller's ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		runCtx, dcancel = context.WithDeadline(runCtx, deadline)
		defer dcancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if p.navTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.navTimeout)
		defer cancel()
	}
	return p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	return p.run(ctx, chromedp.Evaluate(script, out))
}

func (p *chromePage) QueryAll(ctx context.Context, selector string, timeout time.Duration) ([]Element, error) {
	var nodes []*cdp.Node
	err := p.lookup(ctx, timeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll))
	if errors.Is(err, errNoMatch) {
		return []Element{}, nil
	}
	if err != nil {
		return nil, err
	}
	return p.wrap(nodes), nil
}

// lookup runs a waiting query. Running out of the lookup budget means no
// match rather than a failure, unless the caller's own ctx is done.
func (p *chromePage) lookup(ctx context.Context, timeout time.Duration, action chromedp.Action) error {
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := p.run(lctx, action)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return errNoMatch
	}
	return err
}

func (p *chromePage) wrap(nodes []*cdp.Node) []Element {
	els := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &chromeElement{page: p, node: n})
	}
	return els
}

var errNoMatch = errors.New("no matching node")

type chromeElement struct {
	page *chromePage
	node *cdp.Node
}

func (e *chromeElement) Attribute(_ context.Context, name string) (string, error) {
	return e.node.AttributeValue(name), nil
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.page.run(ctx, chromedp.JavascriptAttribute([]cdp.NodeID{e.node.NodeID}, "innerText", &text, chromedp.ByNodeID))
	return text, err
}

func (e *chromeElement) Query(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	var nodes []*cdp.Node
	err := e.page.lookup(ctx, timeout, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.FromNode(e.node)))
	if err != nil || len(nodes) == 0 {
		if errors.Is(err, errNoMatch) {
			err = nil
		}
		return nil, err
	}
	return &chromeElement{page: e.page, node: nodes[0]}, nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.page.run(ctx, chromedp.MouseClickNode(e.node))
}
