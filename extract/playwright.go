package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jupark12/go-content-queue/logger"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightConfig configures the Chromium instance behind product extraction.
type PlaywrightConfig struct {
	Headless          bool
	ExecutablePath    string
	UserAgent         string
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	// Install downloads the driver and Chromium on first use.
	Install bool
}

// PlaywrightBrowser launches Chromium once and opens a fresh browser context
// per session, so no cookies or storage leak between extractions.
type PlaywrightBrowser struct {
	cfg PlaywrightConfig
	log logger.Logger

	once     sync.Once
	startErr error
	pw       *playwright.Playwright
	browser  playwright.Browser
}

// NewPlaywrightBrowser defers starting the driver until the first session.
func NewPlaywrightBrowser(cfg PlaywrightConfig, log logger.Logger) *PlaywrightBrowser {
	return &PlaywrightBrowser{cfg: cfg, log: log}
}

func (b *PlaywrightBrowser) start() error {
	b.once.Do(func() {
		if b.cfg.Install {
			b.log.Info("Installing playwright driver and chromium")
			if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
				b.startErr = fmt.Errorf("install playwright: %w", err)
				return
			}
		}

		pw, err := playwright.Run()
		if err != nil {
			b.startErr = fmt.Errorf("start playwright: %w", err)
			return
		}

		opts := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(b.cfg.Headless),
		}
		if b.cfg.ExecutablePath != "" {
			opts.ExecutablePath = playwright.String(b.cfg.ExecutablePath)
		}

		browser, err := pw.Chromium.Launch(opts)
		if err != nil {
			_ = pw.Stop()
			b.startErr = fmt.Errorf("launch chromium: %w", err)
			return
		}

		b.pw = pw
		b.browser = browser
		b.log.Info("Chromium launched", logger.Bool("headless", b.cfg.Headless))
	})
	return b.startErr
}

// NewSession opens an isolated browser context with a single page.
func (b *PlaywrightBrowser) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.start(); err != nil {
		return nil, err
	}

	opts := playwright.BrowserNewContextOptions{}
	if b.cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(b.cfg.UserAgent)
	}
	bctx, err := b.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultTimeout(milliseconds(b.cfg.ElementTimeout))
	page.SetDefaultNavigationTimeout(milliseconds(b.cfg.NavigationTimeout))

	return &playwrightSession{bctx: bctx, page: page}, nil
}

// Close shuts down Chromium and the driver.
func (b *PlaywrightBrowser) Close() error {
	if b.pw == nil {
		return nil
	}
	var errs []error
	if err := b.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chromium: %w", err))
	}
	if err := b.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

func milliseconds(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}

type playwrightSession struct {
	bctx playwright.BrowserContext
	page playwright.Page
}

func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (s *playwrightSession) WaitVisible(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State: playwright.WaitForSelectorStateVisible,
	})
}

func (s *playwrightSession) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.page.Locator(selector).First().Click()
}

func (s *playwrightSession) Text(ctx context.Context, selector string) ([]string, error) {
	return textOf(ctx, s.page.Locator(selector), selector)
}

func (s *playwrightSession) FrameText(ctx context.Context, frame, selector string) ([]string, error) {
	return textOf(ctx, s.page.FrameLocator(frame).First().Locator(selector), selector)
}

func (s *playwrightSession) Attribute(ctx context.Context, selector string, names ...string) ([]string, error) {
	elements, err := all(ctx, s.page.Locator(selector), selector)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(elements))
	for _, el := range elements {
		for _, name := range names {
			v, err := el.GetAttribute(name)
			if err == nil && v != "" {
				values = append(values, v)
				break
			}
		}
	}
	return values, nil
}

func (s *playwrightSession) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (s *playwrightSession) Close() error {
	return s.bctx.Close()
}

func textOf(ctx context.Context, loc playwright.Locator, selector string) ([]string, error) {
	elements, err := all(ctx, loc, selector)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(elements))
	for _, el := range elements {
		text, err := el.TextContent()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", selector, err)
		}
		values = append(values, text)
	}
	return values, nil
}

func all(ctx context.Context, loc playwright.Locator, selector string) ([]playwright.Locator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	elements, err := loc.All()
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", selector, err)
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, errNoMatch)
	}
	return elements, nil
}
