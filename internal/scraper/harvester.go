package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"deeppoint-scraper/internal/config"
	"deeppoint-scraper/internal/metrics"
	"deeppoint-scraper/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// Harvest steps, reported in warnings and used as metric labels.
const (
	StepNavigate    = "navigate"
	StepChallenge   = "challenge"
	StepDescription = "description"
	StepTrigger     = "trigger"
	StepOverlay     = "overlay"
	StepScroll      = "scroll"
	StepComments    = "comments"
	StepFallback    = "fallback"
	StepPacing      = "pacing"
)

var (
	errNoTrigger      = errors.New("no comment trigger matched")
	errDetailBlocked  = errors.New("detail page is a challenge")
	errNoCommentNodes = errors.New("no comment containers found")
)

// HarvestWarning records one degraded step of a harvest.
type HarvestWarning struct {
	Step string
	Err  error
}

// HarvestResult is the enriched item plus every step that degraded.
// The item is always usable; without comments it carries a zero count.
type HarvestResult struct {
	Item     models.ContentItem
	Warnings []HarvestWarning
}

// Degraded lists the steps that produced warnings, in order.
func (r HarvestResult) Degraded() []string {
	steps := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		steps = append(steps, w.Step)
	}
	return steps
}

// rawComment is a comment as read by commentsScript.
type rawComment struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	Likes    string `json:"likes"`
}

// CommentHarvester opens an item's detail page and collects its comments.
type CommentHarvester struct {
	pacing   config.PacingConfig
	lookup   time.Duration
	pacer    Pacer
	stealth  *StealthInjector
	detector *ChallengeDetector
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewCommentHarvester wires a harvester from its collaborators.
func NewCommentHarvester(cfg config.ScrapeConfig, pacer Pacer, stealth *StealthInjector, detector *ChallengeDetector, logger *zap.Logger, m *metrics.Metrics) *CommentHarvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	lookup := cfg.LookupTimeout
	if lookup <= 0 {
		lookup = FallbackLookupShort
	}
	return &CommentHarvester{
		pacing:   cfg.Pacing,
		lookup:   lookup,
		pacer:    pacer,
		stealth:  stealth,
		detector: detector,
		now:      time.Now,
		logger:   logger,
		metrics:  m,
	}
}

// harvestRun accumulates the state of one Harvest call.
type harvestRun struct {
	item     models.ContentItem
	warnings []HarvestWarning
}

func (r *harvestRun) warn(step string, err error) {
	r.warnings = append(r.warnings, HarvestWarning{Step: step, Err: err})
}

// Harvest enriches item with up to maxComments comments. It never fails:
// each step is best-effort and problems are reported as warnings. A
// non-positive maxComments disables the cap.
func (h *CommentHarvester) Harvest(ctx context.Context, p Page, item models.ContentItem, maxComments int) HarvestResult {
	run := &harvestRun{item: item}
	comments := h.harvest(ctx, p, run, maxComments)
	if comments == nil {
		comments = []models.CommentItem{}
	}
	result := HarvestResult{Item: run.item.WithComments(comments), Warnings: run.warnings}

	for _, w := range result.Warnings {
		h.logger.Warn("Harvest step degraded",
			zap.Error(&models.HarvestItemError{URL: item.URL, Step: w.Step, Err: w.Err}),
		)
	}
	h.metrics.Harvested(len(comments), result.Degraded())
	return result
}

func (h *CommentHarvester) harvest(ctx context.Context, p Page, run *harvestRun, maxComments int) []models.CommentItem {
	if err := p.Navigate(ctx, run.item.URL); err != nil {
		run.warn(StepNavigate, &models.NavigationError{URL: run.item.URL, Err: err})
		return nil
	}
	if err := h.pacer.Pause(ctx, h.pacing.DetailLoad); err != nil {
		run.warn(StepPacing, err)
		return nil
	}
	h.stealth.ApplyStealth(ctx, p)

	if title, err := p.Title(ctx); err == nil {
		if ind, ok := h.detector.MatchText(title); ok {
			run.warn(StepChallenge, fmt.Errorf("%w: matched %q", errDetailBlocked, ind))
			return nil
		}
	}

	h.captureDescription(ctx, p, run)
	h.triggerComments(ctx, p, run)
	if err := h.pacer.Pause(ctx, h.pacing.ClickSettle); err != nil {
		run.warn(StepPacing, err)
		return nil
	}
	h.dismissOverlay(ctx, p, run)

	if err := h.pacer.Pause(ctx, h.pacing.CommentSettle); err != nil {
		run.warn(StepPacing, err)
		return nil
	}
	for i := 0; i < ScrollSteps; i++ {
		var hasList bool
		if err := p.Evaluate(ctx, scrollCommentsScript, &hasList); err != nil {
			run.warn(StepScroll, err)
			break
		}
		if err := h.pacer.Pause(ctx, h.pacing.ScrollStep); err != nil {
			run.warn(StepPacing, err)
			return nil
		}
	}

	comments := h.extractComments(ctx, p, run, maxComments)
	if len(comments) == 0 {
		comments = h.fallbackComments(ctx, p, run, maxComments)
	}
	return comments
}

// captureDescription stores a caption when one is visible, falling back
// to the page metadata and then to a readability excerpt of the snapshot.
func (h *CommentHarvester) captureDescription(ctx context.Context, p Page, run *harvestRun) {
	var desc string
	if err := p.Evaluate(ctx, descriptionScript, &desc); err != nil {
		run.warn(StepDescription, err)
	}
	desc = CleanWhitespace(desc)
	if desc == "" {
		desc = h.snapshotDescription(ctx, p, run.item.URL)
	}
	if desc != "" {
		run.item.Description = Truncate(desc, MaxDescriptionLen)
	}
}

func (h *CommentHarvester) snapshotDescription(ctx context.Context, p Page, pageURL string) string {
	snapshot, err := p.HTML(ctx)
	if err != nil || snapshot == "" {
		return ""
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot)); err == nil {
		if desc := FindMetaTag(doc, "og:description", "description"); desc != "" {
			return CleanWhitespace(desc)
		}
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(snapshot), parsed)
	if err != nil {
		return ""
	}
	return CleanWhitespace(article.Excerpt)
}

// triggerComments clicks the first matching comment opener, then tries
// the in-page fallback. Loading may already be underway, so a miss only
// warns.
func (h *CommentHarvester) triggerComments(ctx context.Context, p Page, run *harvestRun) {
	for _, selector := range CommentTriggerSelectors {
		el, err := queryFirst(ctx, p, selector, h.lookup)
		if err != nil || el == nil {
			continue
		}
		if err := el.Click(ctx); err == nil {
			return
		}
	}

	var clicked bool
	if err := p.Evaluate(ctx, commentTriggerScript, &clicked); err != nil {
		run.warn(StepTrigger, err)
		return
	}
	if !clicked {
		run.warn(StepTrigger, errNoTrigger)
	}
}

// dismissOverlay closes the login guide if present. Absence is normal.
func (h *CommentHarvester) dismissOverlay(ctx context.Context, p Page, run *harvestRun) {
	for _, selector := range OverlaySelectors {
		el, err := queryFirst(ctx, p, selector, h.lookup)
		if err != nil || el == nil {
			continue
		}
		if err := el.Click(ctx); err == nil {
			return
		}
	}
	var dismissed bool
	if err := p.Evaluate(ctx, continueOverlayScript, &dismissed); err != nil {
		run.warn(StepOverlay, err)
	}
}

// extractComments reads comments in one evaluation, keeping the first
// maxComments that survive cleaning.
func (h *CommentHarvester) extractComments(ctx context.Context, p Page, run *harvestRun, maxComments int) []models.CommentItem {
	var raws []rawComment
	if err := p.Evaluate(ctx, commentsScript, &raws); err != nil {
		run.warn(StepComments, err)
		return nil
	}

	var comments []models.CommentItem
	for _, raw := range raws {
		if maxComments > 0 && len(comments) >= maxComments {
			break
		}
		text := Clean(Truncate(raw.Text, MaxCommentRawLen))
		if !Informative(text) {
			continue
		}
		comments = append(comments, h.comment(text, raw.Username, raw.Likes))
	}
	return comments
}

// fallbackComments reads each comment container's own text. That text
// carries more chrome, so the length floor is stricter.
func (h *CommentHarvester) fallbackComments(ctx context.Context, p Page, run *harvestRun, maxComments int) []models.CommentItem {
	els, err := p.QueryAll(ctx, CommentItemSelectors[0], FallbackLookup)
	if err == nil && len(els) == 0 {
		els, err = p.QueryAll(ctx, CommentItemSelectors[1], FallbackLookupShort)
	}
	if err != nil {
		run.warn(StepFallback, err)
		return nil
	}
	if len(els) == 0 {
		run.warn(StepFallback, errNoCommentNodes)
		return nil
	}

	var comments []models.CommentItem
	for _, el := range els {
		if maxComments > 0 && len(comments) >= maxComments {
			break
		}
		raw, err := el.Text(ctx)
		if err != nil {
			continue
		}
		text := Clean(Truncate(raw, MaxCommentRawLen))
		if TextLen(text) < MinFallbackCommentLn {
			continue
		}
		comments = append(comments, h.comment(text, "", ""))
	}
	return comments
}

func (h *CommentHarvester) comment(text, username, likes string) models.CommentItem {
	username = strings.TrimPrefix(CleanWhitespace(username), "@")
	if username == "" {
		username = UnknownAuthor
	}
	likes = likesText(likes)
	if likes == "" {
		likes = ZeroLikes
	}
	return models.CommentItem{
		Text:       text,
		Username:   username,
		Likes:      likes,
		CapturedAt: h.now(),
	}
}
