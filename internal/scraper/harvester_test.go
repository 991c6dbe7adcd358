package scraper

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"deeppoint-scraper/internal/metrics"
	"deeppoint-scraper/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const itemURL = "https://www.douyin.com/video/42"

func newTestHarvester(t *testing.T, pacer Pacer, m *metrics.Metrics) *CommentHarvester {
	t.Helper()
	cfg := testConfig()
	logger := zaptest.NewLogger(t)
	h := NewCommentHarvester(cfg, pacer, NewStealthInjector(nil, logger), NewChallengeDetector(cfg, logger), logger, m)
	h.now = func() time.Time { return fixedNow }
	return h
}

func testItem() models.ContentItem {
	return models.ContentItem{URL: itemURL, Title: "a video", Author: "someone", Likes: "1", CapturedAt: fixedNow}
}

func rawComments(n int) []map[string]string {
	out := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, map[string]string{
			"text":     fmt.Sprintf("这是第%d条很有意思的评论", i),
			"username": fmt.Sprintf("@user%d", i),
			"likes":    fmt.Sprintf("%d", i),
		})
	}
	return out
}

func TestHarvest_CapsAfterFilteringInExtractionOrder(t *testing.T) {
	raws := rawComments(20)
	raws[1]["text"] = "@user123......just now·Beijing reply share 5"

	page := newFakePage()
	page.title = "a video - 抖音"
	page.evals[commentsScript] = raws
	page.evals[descriptionScript] = "  a caption  "
	pacer := &fakePacer{}

	res := newTestHarvester(t, pacer, nil).Harvest(context.Background(), page, testItem(), 5)

	require.Len(t, res.Item.Comments, 5)
	require.NotNil(t, res.Item.CommentCount)
	assert.Equal(t, 5, *res.Item.CommentCount)
	var texts []string
	for _, c := range res.Item.Comments {
		texts = append(texts, c.Text)
	}
	assert.Equal(t, []string{
		"这是第0条很有意思的评论",
		"这是第2条很有意思的评论",
		"这是第3条很有意思的评论",
		"这是第4条很有意思的评论",
		"这是第5条很有意思的评论",
	}, texts)
	assert.Equal(t, "user0", res.Item.Comments[0].Username)
	assert.Equal(t, ZeroLikes, res.Item.Comments[0].Likes)
	assert.Equal(t, "2", res.Item.Comments[1].Likes)
	assert.Equal(t, "a caption", res.Item.Description)
	assert.Equal(t, []string{itemURL}, page.navigated)
	assert.Equal(t, ScrollSteps, page.calls(scrollCommentsScript))
	assert.Equal(t, ScrollSteps, pacer.count(testConfig().Pacing.ScrollStep))
	assert.Equal(t, 1, pacer.count(testConfig().Pacing.DetailLoad))
}

func TestHarvest_NavigationFailureYieldsZeroComments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	page := newFakePage()
	page.navErr[itemURL] = errBoom

	res := newTestHarvester(t, &fakePacer{}, m).Harvest(context.Background(), page, testItem(), 5)

	assert.Empty(t, res.Item.Comments)
	require.NotNil(t, res.Item.CommentCount)
	assert.Zero(t, *res.Item.CommentCount)
	assert.Equal(t, []string{StepNavigate}, res.Degraded())
	assert.ErrorIs(t, res.Warnings[0].Err, errBoom)
	assert.Equal(t, "a video", res.Item.Title)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HarvestWarnings.WithLabelValues(StepNavigate)))
}

func TestHarvest_ChallengedDetailPageAbortsItem(t *testing.T) {
	page := newFakePage()
	page.title = "人机验证"
	page.evals[commentsScript] = rawComments(3)

	res := newTestHarvester(t, &fakePacer{}, nil).Harvest(context.Background(), page, testItem(), 5)

	assert.Equal(t, []string{StepChallenge}, res.Degraded())
	assert.Zero(t, *res.Item.CommentCount)
	assert.Zero(t, page.calls(commentsScript))
}

func TestHarvest_FallbackEnumeratesContainers(t *testing.T) {
	page := newFakePage()
	page.nodes[`div[data-e2e="comment-item"]`] = []*fakeElement{
		{text: "小红 2小时前 真的非常喜欢这个 回复 分享 8"},
		{text: "短评论"},
		{text: "another genuinely long comment"},
	}

	res := newTestHarvester(t, &fakePacer{}, nil).Harvest(context.Background(), page, testItem(), 10)

	require.Len(t, res.Item.Comments, 2)
	assert.Equal(t, "小红 真的非常喜欢这个", res.Item.Comments[0].Text)
	assert.Equal(t, "another genuinely long comment", res.Item.Comments[1].Text)
	assert.Equal(t, UnknownAuthor, res.Item.Comments[0].Username)
}

func TestHarvest_FallbackUsesSecondarySelector(t *testing.T) {
	page := newFakePage()
	page.nodes[`div[class*="comment-item"]`] = []*fakeElement{{text: "secondary container comment"}}

	res := newTestHarvester(t, &fakePacer{}, nil).Harvest(context.Background(), page, testItem(), 10)

	require.Len(t, res.Item.Comments, 1)
	assert.Equal(t, "secondary container comment", res.Item.Comments[0].Text)
}

func TestHarvest_NoCommentsAnywhere(t *testing.T) {
	page := newFakePage()

	res := newTestHarvester(t, &fakePacer{}, nil).Harvest(context.Background(), page, testItem(), 10)

	assert.Zero(t, *res.Item.CommentCount)
	assert.Contains(t, res.Degraded(), StepFallback)
	assert.Contains(t, res.Degraded(), StepTrigger)
}

func TestHarvest_TriggerClicksFirstMatch(t *testing.T) {
	icon := &fakeElement{}
	page := newFakePage()
	page.nodes[CommentTriggerSelectors[0]] = []*fakeElement{icon}
	page.evals[commentsScript] = rawComments(1)

	res := newTestHarvester(t, &fakePacer{}, nil).Harvest(context.Background(), page, testItem(), 10)

	assert.Equal(t, 1, icon.clicks)
	assert.Zero(t, page.calls(commentTriggerScript))
	assert.NotContains(t, res.Degraded(), StepTrigger)
}

func TestHarvest_TriggerScriptFallback(t *testing.T) {
	page := newFakePage()
	page.evals[commentTriggerScript] = true
	page.evals[commentsScript] = rawComments(1)

	res := newTestHarvester(t, &fakePacer{}, nil).Harvest(context.Background(), page, testItem(), 10)

	assert.Equal(t, 1, page.calls(commentTriggerScript))
	assert.NotContains(t, res.Degraded(), StepTrigger)
}

func TestHarvest_DismissesOverlay(t *testing.T) {
	footer := &fakeElement{}
	page := newFakePage()
	page.nodes[OverlaySelectors[0]] = []*fakeElement{footer}
	page.evals[commentsScript] = rawComments(1)

	newTestHarvester(t, &fakePacer{}, nil).Harvest(context.Background(), page, testItem(), 10)

	assert.Equal(t, 1, footer.clicks)
	assert.Zero(t, page.calls(continueOverlayScript))
}

func TestHarvest_OverlayScriptFailureIsWarning(t *testing.T) {
	page := newFakePage()
	page.evalErr[continueOverlayScript] = errBoom
	page.evals[commentsScript] = rawComments(2)

	res := newTestHarvester(t, &fakePacer{}, nil).Harvest(context.Background(), page, testItem(), 10)

	assert.Contains(t, res.Degraded(), StepOverlay)
	assert.Len(t, res.Item.Comments, 2)
}

func TestHarvest_DescriptionFallsBackToMetadata(t *testing.T) {
	page := newFakePage()
	page.html = `<html><head><meta property="og:description" content="  来自页面元数据的描述  "></head><body></body></html>`
	page.evals[commentsScript] = rawComments(1)

	res := newTestHarvester(t, &fakePacer{}, nil).Harvest(context.Background(), page, testItem(), 10)

	assert.Equal(t, "来自页面元数据的描述", res.Item.Description)
}

func TestHarvest_CancelledContextKeepsItem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := newFakePage()

	res := newTestHarvester(t, &fakePacer{}, nil).Harvest(ctx, page, testItem(), 10)

	assert.Equal(t, itemURL, res.Item.URL)
	assert.Zero(t, *res.Item.CommentCount)
	assert.Equal(t, []string{StepPacing}, res.Degraded())
}

func TestHarvest_TruncatesLongDescription(t *testing.T) {
	page := newFakePage()
	page.evals[descriptionScript] = strings.Repeat("猫", 600)
	page.evals[commentsScript] = rawComments(1)

	res := newTestHarvester(t, &fakePacer{}, nil).Harvest(context.Background(), page, testItem(), 10)

	assert.Equal(t, MaxDescriptionLen, TextLen(res.Item.Description))
	assert.Equal(t, strings.Repeat("猫", MaxDescriptionLen), res.Item.Description)
}

func TestHarvest_UnparsableURLSkipsReadability(t *testing.T) {
	page := newFakePage()
	page.html = `<html><head><title>detail</title></head><body><article><p>` +
		strings.Repeat("A long paragraph about a cat that readability would pick up. ", 20) +
		`</p></article></body></html>`
	item := testItem()
	item.URL = "http://[::1"

	var res HarvestResult
	require.NotPanics(t, func() {
		res = newTestHarvester(t, &fakePacer{}, nil).Harvest(context.Background(), page, item, 10)
	})
	assert.Empty(t, res.Item.Description)
}

func TestContinueOverlayScript_MatchesPhrase(t *testing.T) {
	assert.Contains(t, continueOverlayScript, "'"+ContinuePhrase+"'")
}
