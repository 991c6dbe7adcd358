// Package config holds the scraper configuration: browser launch settings,
// target URLs, retry budgets, pacing intervals and challenge keywords.
//
// Values come from DefaultScrapeConfig, optionally overlaid by a YAML file
// and finally by environment variables named in `env` struct tags. .env
// files are loaded before the environment is read:
//
//  1. ENV_FILE (if set, only this file)
//  2. .env.local
//  3. .env
package config

import (
	"fmt"
	"time"
)

// Interval is a closed range a randomized pause is drawn from.
// Min == Max yields a fixed pause.
type Interval struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Fixed returns an interval that always yields d.
func Fixed(d time.Duration) Interval {
	return Interval{Min: d, Max: d}
}

// Validate reports whether the interval is well formed.
func (i Interval) Validate() error {
	if i.Min < 0 || i.Max < 0 {
		return fmt.Errorf("interval must not be negative: %s..%s", i.Min, i.Max)
	}
	if i.Max < i.Min {
		return fmt.Errorf("interval max %s is below min %s", i.Max, i.Min)
	}
	return nil
}

// BrowserConfig configures the Chrome process.
type BrowserConfig struct {
	// Headful shows the browser window; the zero value runs headless.
	Headful      bool   `yaml:"headful" env:"SCRAPER_HEADFUL"`
	ExecPath     string `yaml:"exec_path" env:"SCRAPER_CHROME_PATH"`
	UserAgent    string `yaml:"user_agent" env:"SCRAPER_USER_AGENT"`
	Language     string `yaml:"language" env:"SCRAPER_LANGUAGE"`
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
	// ProxyServer is the network identity handed in by the caller.
	// The scraper never picks or health-checks proxies itself.
	ProxyServer string `yaml:"proxy_server" env:"SCRAPER_PROXY"`
}

// PacingConfig holds every randomized pause of a session.
type PacingConfig struct {
	WarmUp        Interval `yaml:"warm_up"`
	SearchRender  Interval `yaml:"search_render"`
	RetryBackoff  Interval `yaml:"retry_backoff"`
	DetailLoad    Interval `yaml:"detail_load"`
	ClickSettle   Interval `yaml:"click_settle"`
	CommentSettle Interval `yaml:"comment_settle"`
	ScrollStep    Interval `yaml:"scroll_step"`
	ItemGap       Interval `yaml:"item_gap"`
}

// ScrapeConfig is the full scraper configuration.
type ScrapeConfig struct {
	Browser BrowserConfig `yaml:"browser"`
	Pacing  PacingConfig  `yaml:"pacing"`

	Origin            string `yaml:"origin" env:"SCRAPER_ORIGIN"`
	HomeURL           string `yaml:"home_url" env:"SCRAPER_HOME_URL"`
	SearchURLTemplate string `yaml:"search_url_template" env:"SCRAPER_SEARCH_URL"`

	MaxRetries  int `yaml:"max_retries" env:"SCRAPER_MAX_RETRIES"`
	MaxItems    int `yaml:"max_items" env:"SCRAPER_MAX_ITEMS"`
	MaxComments int `yaml:"max_comments" env:"SCRAPER_MAX_COMMENTS"`

	ChallengeIndicators []string      `yaml:"challenge_indicators" env:"SCRAPER_CHALLENGE_INDICATORS"`
	ChallengeHTMLPrefix int           `yaml:"challenge_html_prefix"`
	FrameProbeTimeout   time.Duration `yaml:"frame_probe_timeout"`
	LookupTimeout       time.Duration `yaml:"lookup_timeout"`
	NavigationTimeout   time.Duration `yaml:"navigation_timeout" env:"SCRAPER_NAVIGATION_TIMEOUT"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// DefaultScrapeConfig returns the defaults tuned for the video search surface.
func DefaultScrapeConfig() ScrapeConfig {
	return ScrapeConfig{
		Browser: BrowserConfig{
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Language:     "zh-CN",
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Pacing: PacingConfig{
			WarmUp:        Interval{Min: 2 * time.Second, Max: 4 * time.Second},
			SearchRender:  Interval{Min: 5 * time.Second, Max: 8 * time.Second},
			RetryBackoff:  Fixed(3 * time.Second),
			DetailLoad:    Interval{Min: 3 * time.Second, Max: 5 * time.Second},
			ClickSettle:   Fixed(2 * time.Second),
			CommentSettle: Fixed(2 * time.Second),
			ScrollStep:    Fixed(time.Second),
			ItemGap:       Interval{Min: 3 * time.Second, Max: 6 * time.Second},
		},
		Origin:            "https://www.douyin.com",
		HomeURL:           "https://www.douyin.com/",
		SearchURLTemplate: "https://www.douyin.com/search/%s?source=normal_search&type=video",
		MaxRetries:        2,
		MaxItems:          10,
		MaxComments:       30,
		ChallengeIndicators: []string{
			"验证码", "验证中间页", "captcha", "verify",
			"TTGCaptcha", "verifycenter", "滑块", "人机验证",
		},
		ChallengeHTMLPrefix: 5000,
		FrameProbeTimeout:   time.Second,
		LookupTimeout:       2 * time.Second,
		NavigationTimeout:   45 * time.Second,
		LogLevel:            "info",
	}
}

// Validate checks invariants the scraper relies on.
func (c ScrapeConfig) Validate() error {
	if c.Origin == "" {
		return fmt.Errorf("origin is required")
	}
	if c.SearchURLTemplate == "" {
		return fmt.Errorf("search_url_template is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.ChallengeHTMLPrefix <= 0 {
		return fmt.Errorf("challenge_html_prefix must be positive, got %d", c.ChallengeHTMLPrefix)
	}
	intervals := map[string]Interval{
		"warm_up":        c.Pacing.WarmUp,
		"search_render":  c.Pacing.SearchRender,
		"retry_backoff":  c.Pacing.RetryBackoff,
		"detail_load":    c.Pacing.DetailLoad,
		"click_settle":   c.Pacing.ClickSettle,
		"comment_settle": c.Pacing.CommentSettle,
		"scroll_step":    c.Pacing.ScrollStep,
		"item_gap":       c.Pacing.ItemGap,
	}
	for name, iv := range intervals {
		if err := iv.Validate(); err != nil {
			return fmt.Errorf("pacing.%s: %w", name, err)
		}
	}
	return nil
}
