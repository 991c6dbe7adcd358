package scraper

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestChallengeDetector_Title(t *testing.T) {
	d := NewChallengeDetector(testConfig(), zaptest.NewLogger(t))
	page := newFakePage()
	page.title = "验证码中间页"

	signal := d.Assess(context.Background(), page)
	assert.True(t, signal.IsChallenge)
	assert.Equal(t, "验证码", signal.MatchedIndicator)
}

func TestChallengeDetector_CaseInsensitive(t *testing.T) {
	d := NewChallengeDetector(testConfig(), nil)
	page := newFakePage()
	page.html = `<html><body><div id="CAPTCHA-box"></div></body></html>`

	signal := d.Assess(context.Background(), page)
	assert.True(t, signal.IsChallenge)
	assert.Equal(t, "captcha", signal.MatchedIndicator)
}

func TestChallengeDetector_OnlyScansMarkupPrefix(t *testing.T) {
	cfg := testConfig()
	d := NewChallengeDetector(cfg, nil)

	page := newFakePage()
	page.html = strings.Repeat("a", cfg.ChallengeHTMLPrefix) + "captcha"
	assert.False(t, d.IsChallenged(context.Background(), page))

	page.html = strings.Repeat("a", cfg.ChallengeHTMLPrefix-len("captcha")) + "captcha"
	assert.True(t, d.IsChallenged(context.Background(), page))
}

func TestChallengeDetector_FrameProbe(t *testing.T) {
	d := NewChallengeDetector(testConfig(), nil)
	page := newFakePage()
	page.nodes[ChallengeFrameSelector] = []*fakeElement{{attrs: map[string]string{"src": "https://x/verify"}}}

	signal := d.Assess(context.Background(), page)
	assert.True(t, signal.IsChallenge)
	assert.Equal(t, ChallengeFrameSelector, signal.MatchedIndicator)
}

func TestChallengeDetector_CleanPage(t *testing.T) {
	d := NewChallengeDetector(testConfig(), nil)
	page := newFakePage()
	page.title = "猫 - 抖音搜索"

	assert.False(t, d.IsChallenged(context.Background(), page))
	assert.Contains(t, page.queries, ChallengeFrameSelector)
}

func TestChallengeDetector_TitleErrorIsNoSignal(t *testing.T) {
	d := NewChallengeDetector(testConfig(), nil)
	page := newFakePage()
	page.titleErr = errBoom

	assert.False(t, d.IsChallenged(context.Background(), page))
}
