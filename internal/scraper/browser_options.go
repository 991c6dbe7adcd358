// Package scraper provides browser configuration options for Chrome automation.
package scraper

import (
	"fmt"

	"deeppoint-scraper/internal/config"

	"github.com/chromedp/chromedp"
)

// BuildChromeOptions creates Chrome options based on the browser config
func BuildChromeOptions(opts config.BrowserConfig) []chromedp.ExecAllocatorOption {
	headless := chromedp.Flag("headless", "new")
	if opts.Headful {
		headless = chromedp.Flag("headless", false)
	}

	chromeOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		headless,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
		chromedp.Flag("start-maximized", true),
		// Stealth flags
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-features", "TranslateUI,BlinkGenPropertyTrees"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
	)

	if opts.Language != "" {
		chromeOpts = append(chromeOpts,
			chromedp.Flag("lang", opts.Language),
			chromedp.Flag("accept-lang", fmt.Sprintf("%s,zh;q=0.9,en;q=0.8", opts.Language)),
		)
	}
	if opts.UserAgent != "" {
		chromeOpts = append(chromeOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		chromeOpts = append(chromeOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.ProxyServer != "" {
		chromeOpts = append(chromeOpts, chromedp.ProxyServer(opts.ProxyServer))
	}

	return chromeOpts
}

// GetStealthScript returns JavaScript that masks automation signals.
// Every patch is wrapped so one failing surface does not stop the rest,
// and the script may run any number of times on the same document.
func GetStealthScript(languages []string) string {
	langs := `['zh-CN', 'zh', 'en']`
	if len(languages) > 0 {
		langs = jsStringArray(languages)
	}

	return `(() => {
	const define = (obj, prop, getter) => {
		try {
			Object.defineProperty(obj, prop, { get: getter, configurable: true });
		} catch (e) {}
	};

	// Automation flag reads as absent
	define(navigator, 'webdriver', () => undefined);
	try { delete Object.getPrototypeOf(navigator).webdriver; } catch (e) {}

	// Plausible fingerprint
	define(navigator, 'plugins', () => {
		const plugins = [
			{ name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
			{ name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', description: '' },
			{ name: 'Native Client', filename: 'internal-nacl-plugin', description: '' }
		];
		plugins.length = 3;
		return plugins;
	});
	define(navigator, 'languages', () => ` + langs + `);
	define(navigator, 'hardwareConcurrency', () => 8);
	define(navigator, 'deviceMemory', () => 8);
	define(navigator, 'maxTouchPoints', () => 0);

	// Vendor runtime object missing under automation
	try {
		if (!window.chrome) {
			window.chrome = {};
		}
		if (!window.chrome.runtime) {
			window.chrome.runtime = {
				connect: function() {},
				sendMessage: function() {},
				onMessage: { addListener: function() {} }
			};
		}
		if (!window.chrome.app) {
			window.chrome.app = {
				isInstalled: false,
				InstallState: { INSTALLED: 'installed', NOT_INSTALLED: 'not_installed' },
				RunningState: { RUNNING: 'running', CANNOT_RUN: 'cannot_run' }
			};
		}
		if (!window.chrome.csi) {
			window.chrome.csi = function() {
				return { onloadT: Date.now(), startE: performance.timeOrigin, tran: 15 };
			};
		}
		if (!window.chrome.loadTimes) {
			window.chrome.loadTimes = function() {
				const now = Date.now() / 1000;
				return {
					commitLoadTime: now - 0.5,
					connectionInfo: 'h2',
					finishDocumentLoadTime: now - 0.1,
					finishLoadTime: now,
					firstPaintTime: now - 0.3,
					navigationType: 'Other',
					npnNegotiatedProtocol: 'h2',
					requestTime: now - 1,
					startLoadTime: now - 0.8,
					wasFetchedViaSpdy: true,
					wasNpnNegotiated: true
				};
			};
		}
	} catch (e) {}

	// Known automation marker globals
	try {
		for (const key of Object.keys(window)) {
			if (/^cdc_|^\$cdc_|^__(webdriver|selenium|driver|fxdriver)_/.test(key)) {
				try { delete window[key]; } catch (e) {}
			}
		}
		for (const key of ['cdc_adoQpoasnfa76pfcZLmcfl_Array', 'cdc_adoQpoasnfa76pfcZLmcfl_Promise',
			'cdc_adoQpoasnfa76pfcZLmcfl_Symbol', '_Selenium_IDE_Recorder', '_selenium',
			'callSelenium', '__nightmare', '_phantom', '_puppeteer']) {
			try { delete window[key]; } catch (e) {}
		}
	} catch (e) {}

	// Permissions query answers like a real browser
	try {
		const permissions = window.navigator.permissions;
		if (permissions && !permissions.__patched) {
			const originalQuery = permissions.query.bind(permissions);
			permissions.query = (parameters) => (
				parameters && parameters.name === 'notifications'
					? Promise.resolve({ state: Notification.permission })
					: originalQuery(parameters)
			);
			permissions.__patched = true;
		}
	} catch (e) {}

	// WebGL vendor
	try {
		const proto = WebGLRenderingContext.prototype;
		if (!proto.__patched) {
			const getParameter = proto.getParameter;
			proto.getParameter = function(parameter) {
				if (parameter === 37445) return 'Intel Inc.';
				if (parameter === 37446) return 'Intel Iris OpenGL Engine';
				return getParameter.apply(this, arguments);
			};
			proto.__patched = true;
		}
	} catch (e) {}

	return true;
})()`
}

// jsStringArray renders a JavaScript array literal of quoted strings.
func jsStringArray(values []string) string {
	out := "["
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q", v)
	}
	return out + "]"
}
