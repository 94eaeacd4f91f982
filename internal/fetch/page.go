package fetch

import (
	"context"
	"time"

	"github.com/apply-app/apply-api/internal/logging"
)

// MaxContentChars bounds the page text handed to the extraction prompt.
const MaxContentChars = 15000

// PageFetcherConfig configures a PageFetcher.
type PageFetcherConfig struct {
	Options    *Options
	UseBrowser bool          // re-render thin pages with headless Chrome
	BrowserTTL time.Duration // browser render timeout
	MaxChars   int
	Cache      TextCache // optional
}

// PageFetcher turns a URL into bounded plain text. It never fails: any error
// yields empty content, and the model is then asked to rely on the URL alone.
type PageFetcher struct {
	opts       *Options
	useBrowser bool
	browserTTL time.Duration
	maxChars   int
	cache      TextCache
	log        *logging.Logger

	// render is WithBrowser, swapped in tests.
	render func(ctx context.Context, url string, timeout time.Duration) (string, error)
}

// NewPageFetcher creates a PageFetcher. A nil config uses defaults.
func NewPageFetcher(cfg *PageFetcherConfig, log *logging.Logger) *PageFetcher {
	if cfg == nil {
		cfg = &PageFetcherConfig{}
	}
	if cfg.Options == nil {
		cfg.Options = DefaultOptions()
	}
	if cfg.BrowserTTL == 0 {
		cfg.BrowserTTL = DefaultTimeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = MaxContentChars
	}
	if log == nil {
		log = logging.Nop()
	}
	return &PageFetcher{
		opts:       cfg.Options,
		useBrowser: cfg.UseBrowser,
		browserTTL: cfg.BrowserTTL,
		maxChars:   cfg.MaxChars,
		cache:      cfg.Cache,
		log:        log,
		render:     WithBrowser,
	}
}

// FetchText returns the page's text, truncated to the configured maximum, or
// "" if the page could not be retrieved.
func (f *PageFetcher) FetchText(ctx context.Context, urlStr string) string {
	if f.cache != nil {
		if text, ok, err := f.cache.Get(ctx, urlStr); err != nil {
			f.log.Warn("page cache read failed", "url", urlStr, "error", err)
		} else if ok {
			f.log.Debug("page cache hit", "url", urlStr)
			return text
		}
	}

	platform := DetectPlatform(urlStr)
	text := ""

	result, err := URL(ctx, urlStr, f.opts)
	if err != nil {
		f.log.Warn("failed to fetch page, continuing without content", "url", urlStr, "error", err)
		return ""
	}
	if text, err = ExtractText(result.HTML, platform); err != nil {
		f.log.Warn("failed to extract page text", "url", urlStr, "error", err)
		text = ""
	}

	// Only pages served successfully are re-rendered; error pages stay empty.
	if f.useBrowser && ShouldUseBrowser(text) && ctx.Err() == nil {
		f.log.Info("page content thin, rendering with browser", "url", urlStr, "chars", len(text))
		html, err := f.render(ctx, urlStr, f.browserTTL)
		if err != nil {
			f.log.Warn("browser render failed", "url", urlStr, "error", err)
		} else if rendered, err := ExtractText(html, platform); err == nil && len(rendered) > len(text) {
			text = rendered
		}
	}

	text = Truncate(text, f.maxChars)

	if f.cache != nil && text != "" {
		if err := f.cache.Set(ctx, urlStr, text); err != nil {
			f.log.Warn("page cache write failed", "url", urlStr, "error", err)
		}
	}
	return text
}
