package scraper

import (
	"context"
	"strings"
	"time"

	"deeppoint-scraper/internal/config"

	"go.uber.org/zap"
)

// ChallengeFrameSelector matches an embedded frame hosting a verification widget.
const ChallengeFrameSelector = `iframe[src*="verify"]`

// ChallengeSignal is the outcome of one page assessment.
type ChallengeSignal struct {
	IsChallenge      bool
	MatchedIndicator string
}

// ChallengeAssessor classifies the current page.
type ChallengeAssessor interface {
	Assess(ctx context.Context, p Page) ChallengeSignal
}

// ChallengeDetector is a keyword heuristic over the title, a bounded
// markup prefix and a short probe for a verification frame. False
// positives cost one retry; false negatives fall through to the empty
// result path.
type ChallengeDetector struct {
	indicators []string
	prefix     int
	frameProbe time.Duration
	logger     *zap.Logger
}

// NewChallengeDetector builds a detector from the scrape config.
func NewChallengeDetector(cfg config.ScrapeConfig, logger *zap.Logger) *ChallengeDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	indicators := make([]string, 0, len(cfg.ChallengeIndicators))
	for _, ind := range cfg.ChallengeIndicators {
		if ind = strings.TrimSpace(ind); ind != "" {
			indicators = append(indicators, ind)
		}
	}
	return &ChallengeDetector{
		indicators: indicators,
		prefix:     cfg.ChallengeHTMLPrefix,
		frameProbe: cfg.FrameProbeTimeout,
		logger:     logger,
	}
}

// IsChallenged reports whether the page looks like a challenge.
func (d *ChallengeDetector) IsChallenged(ctx context.Context, p Page) bool {
	return d.Assess(ctx, p).IsChallenge
}

// Assess checks the title, then the markup prefix, then the frame probe.
// The first match wins. Read failures count as no signal.
func (d *ChallengeDetector) Assess(ctx context.Context, p Page) ChallengeSignal {
	if title, err := p.Title(ctx); err == nil {
		if ind, ok := d.MatchText(title); ok {
			return ChallengeSignal{IsChallenge: true, MatchedIndicator: ind}
		}
	}

	if html, err := p.HTML(ctx); err == nil {
		if ind, ok := d.MatchText(Truncate(html, d.prefix)); ok {
			return ChallengeSignal{IsChallenge: true, MatchedIndicator: ind}
		}
	}

	if d.frameProbe > 0 {
		frames, err := p.QueryAll(ctx, ChallengeFrameSelector, d.frameProbe)
		if err != nil {
			d.logger.Debug("Challenge frame probe failed", zap.Error(err))
		} else if len(frames) > 0 {
			return ChallengeSignal{IsChallenge: true, MatchedIndicator: ChallengeFrameSelector}
		}
	}

	return ChallengeSignal{}
}

// MatchText returns the first indicator found in text, ignoring case.
func (d *ChallengeDetector) MatchText(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, ind := range d.indicators {
		if strings.Contains(lower, strings.ToLower(ind)) {
			return ind, true
		}
	}
	return "", false
}
