// Package scraper drives a stealth-patched browser through the video
// search surface: it runs the search, gates on challenge pages, extracts
// listings through a strategy chain and, in deep mode, harvests comments
// for each item.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"deeppoint-scraper/internal/config"
	"deeppoint-scraper/internal/metrics"
	"deeppoint-scraper/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Invocation modes, used in logs and metrics.
const (
	ModeSearch = "search"
	ModeDeep   = "deep"
)

// SessionState is the lifecycle state of the controller's browser session.
type SessionState int

const (
	StateUnstarted SessionState = iota
	StateReady
	StateChallengePresented
	StateRestarting
	StateClosed
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateReady:
		return "ready"
	case StateChallengePresented:
		return "challenge_presented"
	case StateRestarting:
		return "restarting"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// attemptOutcome classifies how one search attempt ended.
type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeLaunchFailed
	outcomeNavigationFailed
	outcomeChallenge
	outcomeEmpty
	outcomeAborted
)

var outcomeLabels = map[attemptOutcome]string{
	outcomeSuccess:          "success",
	outcomeLaunchFailed:     "launch_error",
	outcomeNavigationFailed: "navigation_error",
	outcomeChallenge:        "challenge",
	outcomeEmpty:            "empty",
	outcomeAborted:          "aborted",
}

// attemptResult is what one attempt hands back to the retry loop.
type attemptResult struct {
	outcome   attemptOutcome
	browser   Browser // live only on success
	items     []models.ContentItem
	indicator string
	err       error
}

// Controller owns the browser session and sequences stealth, challenge
// detection, extraction and harvesting. Invocations are serialized, so
// at most one browser is live per controller.
type Controller struct {
	cfg       config.ScrapeConfig
	launcher  Launcher
	pacer     Pacer
	stealth   *StealthInjector
	detector  *ChallengeDetector
	assessor  ChallengeAssessor
	chain     *ExtractionChain
	harvester *CommentHarvester
	logger    *zap.Logger
	metrics   *metrics.Metrics
	newRunID  func() string
	now       func() time.Time

	run sync.Mutex

	stateMu sync.RWMutex
	state   SessionState
}

// Option configures a Controller.
type Option func(*Controller)

// WithPacer replaces the randomized pacer.
func WithPacer(p Pacer) Option {
	return func(c *Controller) { c.pacer = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithAssessor replaces the challenge check run after the search page renders.
func WithAssessor(a ChallengeAssessor) Option {
	return func(c *Controller) { c.assessor = a }
}

// WithRunIDs sets the run id generator.
func WithRunIDs(gen func() string) Option {
	return func(c *Controller) { c.newRunID = gen }
}

// WithNow sets the clock used for capture timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController wires a controller and its components from cfg.
func NewController(cfg config.ScrapeConfig, launcher Launcher, opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		launcher: launcher,
		pacer:    NewRandomPacer(),
		logger:   zap.NewNop(),
		newRunID: uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	var languages []string
	if cfg.Browser.Language != "" {
		languages = []string{cfg.Browser.Language, "zh", "en"}
	}
	c.stealth = NewStealthInjector(languages, c.logger)
	c.detector = NewChallengeDetector(cfg, c.logger)
	if c.assessor == nil {
		c.assessor = c.detector
	}
	c.chain = NewExtractionChain(cfg.Origin, c.detector, c.logger,
		WithClock(c.now),
		WithChainMetrics(c.metrics),
	)
	c.harvester = NewCommentHarvester(cfg, c.pacer, c.stealth, c.detector, c.logger, c.metrics)
	c.harvester.now = c.now
	return c
}

// State returns the current session state.
func (c *Controller) State() SessionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Controller) setState(s SessionState) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// SearchURL builds the search page URL for keyword.
func (c *Controller) SearchURL(keyword string) string {
	return fmt.Sprintf(c.cfg.SearchURLTemplate, url.PathEscape(keyword))
}

// RunSearch runs up to maxRetries+1 attempts and returns the listing of
// the first attempt that yields items. An empty result after every
// attempt is not an error; a challenge on the last attempt is.
func (c *Controller) RunSearch(ctx context.Context, keyword string, maxRetries int) ([]models.ContentItem, error) {
	c.run.Lock()
	defer c.run.Unlock()

	log := c.logger.With(
		zap.String("run_id", c.newRunID()),
		zap.String("mode", ModeSearch),
		zap.String("keyword", keyword),
	)
	start := time.Now()
	defer func() { c.metrics.ObserveSession(ModeSearch, time.Since(start).Seconds()) }()

	browser, items, err := c.search(ctx, log, keyword, maxRetries)
	if browser != nil {
		c.teardown(log, browser)
	}
	if err != nil {
		log.Error("Search failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	log.Info("Search finished", zap.Int("items", len(items)), zap.Duration("elapsed", time.Since(start)))
	return items, nil
}

// RunDeepSearch searches with the configured retry budget, then harvests
// comments for the first maxItems items in the same browser. Harvest
// failures stay with their item; every item is returned.
func (c *Controller) RunDeepSearch(ctx context.Context, keyword string, maxItems, maxCommentsPerItem int) ([]models.ContentItem, error) {
	c.run.Lock()
	defer c.run.Unlock()

	if maxItems <= 0 {
		maxItems = c.cfg.MaxItems
	}
	if maxCommentsPerItem <= 0 {
		maxCommentsPerItem = c.cfg.MaxComments
	}

	log := c.logger.With(
		zap.String("run_id", c.newRunID()),
		zap.String("mode", ModeDeep),
		zap.String("keyword", keyword),
	)
	start := time.Now()
	defer func() { c.metrics.ObserveSession(ModeDeep, time.Since(start).Seconds()) }()

	browser, items, err := c.search(ctx, log, keyword, c.cfg.MaxRetries)
	if err != nil {
		log.Error("Deep search failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	if browser == nil {
		log.Info("Deep search found no items", zap.Duration("elapsed", time.Since(start)))
		return items, nil
	}
	defer c.teardown(log, browser)

	if len(items) > maxItems {
		items = items[:maxItems]
	}

	page := browser.Page()
	enriched := make([]models.ContentItem, 0, len(items))
	for i, item := range items {
		if i > 0 {
			if err := c.pacer.Pause(ctx, c.cfg.Pacing.ItemGap); err != nil {
				enriched = append(enriched, items[i:]...)
				return enriched, err
			}
		}
		res := c.harvester.Harvest(ctx, page, item, maxCommentsPerItem)
		log.Info("Item harvested",
			zap.Int("index", i+1),
			zap.Int("total", len(items)),
			zap.String("url", item.URL),
			zap.Int("comments", *res.Item.CommentCount),
			zap.Strings("degraded", res.Degraded()),
		)
		enriched = append(enriched, res.Item)
	}

	log.Info("Deep search finished",
		zap.Int("items", len(enriched)),
		zap.Int("comments", countComments(enriched)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return enriched, ctx.Err()
}

// search is the retry loop. On success the browser is returned still
// open; on every other path it has already been torn down.
func (c *Controller) search(ctx context.Context, log *zap.Logger, keyword string, maxRetries int) (Browser, []models.ContentItem, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	searchURL := c.SearchURL(keyword)
	seen := NewSeenSet()

	var last attemptResult
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.setState(StateRestarting)
			if err := c.pacer.Pause(ctx, c.cfg.Pacing.RetryBackoff); err != nil {
				c.setState(StateFailed)
				return nil, nil, err
			}
		}

		alog := log.With(zap.Int("attempt", attempt+1), zap.Int("max_attempts", maxRetries+1))
		alog.Info("Starting search attempt",
			zap.String("url", searchURL),
			zap.Duration("remaining", calculateRemainingTime(ctx)),
		)
		last = c.attempt(ctx, alog, attempt, searchURL, seen)
		c.metrics.Attempt(outcomeLabels[last.outcome])

		switch last.outcome {
		case outcomeSuccess:
			return last.browser, last.items, nil
		case outcomeAborted:
			c.setState(StateFailed)
			return nil, nil, last.err
		case outcomeChallenge:
			alog.Warn("Challenge page detected", zap.String("indicator", last.indicator))
		case outcomeEmpty:
			alog.Warn("Extraction returned no items", zap.Error(last.err))
		default:
			alog.Warn("Search attempt failed", zap.Error(last.err))
		}
	}

	attempts := maxRetries + 1
	switch last.outcome {
	case outcomeEmpty:
		return nil, []models.ContentItem{}, nil
	case outcomeChallenge:
		c.setState(StateFailed)
		return nil, nil, &models.ChallengeError{Attempts: attempts, Indicator: last.indicator}
	case outcomeLaunchFailed:
		c.setState(StateFailed)
		return nil, nil, &models.LaunchError{Attempts: attempts, Err: last.err}
	default:
		c.setState(StateFailed)
		return nil, nil, last.err
	}
}

// attempt runs one full session. The browser is torn down before
// returning unless the attempt succeeded.
func (c *Controller) attempt(ctx context.Context, log *zap.Logger, attempt int, searchURL string, seen *SeenSet) (res attemptResult) {
	if err := ctx.Err(); err != nil {
		return attemptResult{outcome: outcomeAborted, err: err}
	}

	browser, err := c.launcher.Launch(ctx)
	if err != nil {
		c.setState(StateFailed)
		return attemptResult{outcome: outcomeLaunchFailed, err: err}
	}
	c.setState(StateReady)
	defer func() {
		if res.outcome != outcomeSuccess {
			c.teardown(log, browser)
		}
	}()

	page := browser.Page()
	c.stealth.ApplyStealth(ctx, page)

	if attempt == 0 && c.cfg.HomeURL != "" {
		if err := page.Navigate(ctx, c.cfg.HomeURL); err != nil {
			log.Warn("Warm-up navigation failed", zap.Error(err))
		} else {
			c.stealth.ApplyStealth(ctx, page)
			if err := c.pacer.Pause(ctx, c.cfg.Pacing.WarmUp); err != nil {
				return attemptResult{outcome: outcomeAborted, err: err}
			}
		}
	}

	if err := page.Navigate(ctx, searchURL); err != nil {
		if ctx.Err() != nil {
			return attemptResult{outcome: outcomeAborted, err: ctx.Err()}
		}
		return attemptResult{outcome: outcomeNavigationFailed, err: &models.NavigationError{URL: searchURL, Err: err}}
	}
	if err := c.pacer.Pause(ctx, c.cfg.Pacing.SearchRender); err != nil {
		return attemptResult{outcome: outcomeAborted, err: err}
	}
	c.stealth.ApplyStealth(ctx, page)

	if signal := c.assessor.Assess(ctx, page); signal.IsChallenge {
		c.setState(StateChallengePresented)
		c.metrics.Challenge()
		return attemptResult{outcome: outcomeChallenge, indicator: signal.MatchedIndicator}
	}

	ex := c.chain.Extract(ctx, page, seen)
	if ctx.Err() != nil {
		return attemptResult{outcome: outcomeAborted, err: ctx.Err()}
	}
	if len(ex.Items) == 0 {
		if ex.SuspectedChallenge {
			c.setState(StateChallengePresented)
			c.metrics.Challenge()
			return attemptResult{outcome: outcomeChallenge, indicator: ex.Indicator}
		}
		return attemptResult{outcome: outcomeEmpty, err: models.ErrEmptyResult}
	}

	log.Info("Extracted items", zap.String("strategy", ex.Strategy), zap.Int("items", len(ex.Items)))
	return attemptResult{outcome: outcomeSuccess, browser: browser, items: ex.Items}
}

// teardown releases the browser. Close errors are logged only.
func (c *Controller) teardown(log *zap.Logger, browser Browser) {
	if err := browser.Close(); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("Browser close failed", zap.Error(err))
	}
	if c.State() != StateFailed {
		c.setState(StateClosed)
	}
}

// calculateRemainingTime gets the time until context deadline
func calculateRemainingTime(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining > 0 {
			return remaining
		}
		return 0
	}
	// No deadline set, return zero to mark an unbounded run
	return 0
}

func countComments(items []models.ContentItem) int {
	total := 0
	for _, item := range items {
		if item.CommentCount != nil {
			total += *item.CommentCount
		}
	}
	return total
}
