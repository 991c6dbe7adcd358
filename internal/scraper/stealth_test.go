package scraper

import (
	"context"
	"testing"

	"deeppoint-scraper/internal/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestApplyStealth_SwallowsFailures(t *testing.T) {
	s := NewStealthInjector(nil, zaptest.NewLogger(t))
	page := newFakePage()
	page.evalErr[s.script] = errBoom

	assert.NotPanics(t, func() {
		s.ApplyStealth(context.Background(), page)
		s.ApplyStealth(context.Background(), page)
	})
	assert.Equal(t, 2, page.calls(s.script))
}

func TestGetStealthScript_Languages(t *testing.T) {
	assert.Contains(t, GetStealthScript(nil), `['zh-CN', 'zh', 'en']`)
	assert.Contains(t, GetStealthScript([]string{"en-US", "en"}), `["en-US", "en"]`)
}

func TestGetStealthScript_PatchesAutomationSignals(t *testing.T) {
	script := GetStealthScript(nil)
	for _, want := range []string{
		"'webdriver'",
		"'plugins'",
		"'hardwareConcurrency'",
		"'deviceMemory'",
		"window.chrome.runtime",
		"cdc_adoQpoasnfa76pfcZLmcfl_Array",
		"permissions.query",
	} {
		assert.Contains(t, script, want)
	}
}

func TestBuildChromeOptions_OptionalFlags(t *testing.T) {
	base := config.BrowserConfig{WindowWidth: 800, WindowHeight: 600}
	full := base
	full.Language = "zh-CN"
	full.UserAgent = "test-agent"
	full.ExecPath = "/usr/bin/chromium"
	full.ProxyServer = "http://127.0.0.1:8080"

	assert.Len(t, BuildChromeOptions(full), len(BuildChromeOptions(base))+5)
}
