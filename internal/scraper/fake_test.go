package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"deeppoint-scraper/internal/config"
)

// fakeElement is a scripted DOM node.
type fakeElement struct {
	attrs    map[string]string
	text     string
	children map[string]*fakeElement
	clickErr error
	clicks   int
}

func (e *fakeElement) Attribute(_ context.Context, name string) (string, error) {
	return e.attrs[name], nil
}

func (e *fakeElement) Text(context.Context) (string, error) {
	return e.text, nil
}

func (e *fakeElement) Query(_ context.Context, selector string, _ time.Duration) (Element, error) {
	child, ok := e.children[selector]
	if !ok || child == nil {
		return nil, nil
	}
	return child, nil
}

func (e *fakeElement) Click(context.Context) error {
	e.clicks++
	return e.clickErr
}

// fakePage answers page calls from fixed tables.
type fakePage struct {
	mu sync.Mutex

	title    string
	html     string
	titleErr error
	navErr   map[string]error
	evals    map[string]any
	evalErr  map[string]error
	nodes    map[string][]*fakeElement

	navigated []string
	evalCalls map[string]int
	queries   []string
}

func newFakePage() *fakePage {
	return &fakePage{
		html:      "<html><head><title>search</title></head><body></body></html>",
		navErr:    map[string]error{},
		evals:     map[string]any{},
		evalErr:   map[string]error{},
		nodes:     map[string][]*fakeElement{},
		evalCalls: map[string]int{},
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return p.navErr[url]
}

func (p *fakePage) Title(context.Context) (string, error) {
	return p.title, p.titleErr
}

func (p *fakePage) HTML(context.Context) (string, error) {
	return p.html, nil
}

func (p *fakePage) Evaluate(_ context.Context, script string, out any) error {
	p.mu.Lock()
	p.evalCalls[script]++
	err := p.evalErr[script]
	v, ok := p.evals[script]
	p.mu.Unlock()

	if err != nil {
		return err
	}
	if !ok || out == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (p *fakePage) QueryAll(_ context.Context, selector string, _ time.Duration) ([]Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, selector)
	els := make([]Element, 0, len(p.nodes[selector]))
	for _, n := range p.nodes[selector] {
		els = append(els, n)
	}
	return els, nil
}

func (p *fakePage) calls(script string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.evalCalls[script]
}

type fakeBrowser struct {
	page   *fakePage
	closed int
}

func (b *fakeBrowser) Page() Page { return b.page }

func (b *fakeBrowser) Close() error {
	b.closed++
	return nil
}

// fakeLauncher hands out one scripted page per launch. When pages run
// out the last one is reused.
type fakeLauncher struct {
	pages    []*fakePage
	errs     []error
	browsers []*fakeBrowser
	launches int
}

func (l *fakeLauncher) Launch(context.Context) (Browser, error) {
	i := l.launches
	l.launches++
	if i < len(l.errs) && l.errs[i] != nil {
		return nil, l.errs[i]
	}
	page := l.pages[len(l.pages)-1]
	if i < len(l.pages) {
		page = l.pages[i]
	}
	b := &fakeBrowser{page: page}
	l.browsers = append(l.browsers, b)
	return b, nil
}

// fakePacer records pauses without sleeping.
type fakePacer struct {
	pauses []config.Interval
	err    error
}

func (p *fakePacer) Pause(ctx context.Context, iv config.Interval) error {
	p.pauses = append(p.pauses, iv)
	if p.err != nil {
		return p.err
	}
	return ctx.Err()
}

func (p *fakePacer) count(iv config.Interval) int {
	n := 0
	for _, got := range p.pauses {
		if got == iv {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")

// testConfig uses distinct pause lengths so recorded pauses identify
// the step that took them.
func testConfig() config.ScrapeConfig {
	cfg := config.DefaultScrapeConfig()
	cfg.Pacing = config.PacingConfig{
		WarmUp:        config.Fixed(1 * time.Millisecond),
		SearchRender:  config.Fixed(2 * time.Millisecond),
		RetryBackoff:  config.Fixed(3 * time.Millisecond),
		DetailLoad:    config.Fixed(4 * time.Millisecond),
		ClickSettle:   config.Fixed(5 * time.Millisecond),
		CommentSettle: config.Fixed(6 * time.Millisecond),
		ScrollStep:    config.Fixed(7 * time.Millisecond),
		ItemGap:       config.Fixed(8 * time.Millisecond),
	}
	return cfg
}

func listing(href, title string) map[string]string {
	return map[string]string{"href": href, "title": title, "author": "author " + title, "likes": "1.2万"}
}
