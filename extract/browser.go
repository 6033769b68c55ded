package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/models"
)

const screenshotTimeout = 10 * time.Second

// Browser hands out isolated automation sessions.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is one exclusive browser page. Selector lookups that match nothing
// return an error.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	// Text returns the text of every element matching selector.
	Text(ctx context.Context, selector string) ([]string, error)
	// Attribute returns, for every element matching selector, the first
	// non-empty value among names.
	Attribute(ctx context.Context, selector string, names ...string) ([]string, error)
	// FrameText returns the text of elements matching selector inside the
	// first iframe matching frame.
	FrameText(ctx context.Context, frame, selector string) ([]string, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// ProductConfig configures the product extractor.
type ProductConfig struct {
	// ScreenshotDir receives a diagnostic capture when extraction fails.
	// Empty disables screenshots.
	ScreenshotDir string
}

// ProductExtractor drives a browser session through a marketplace listing.
type ProductExtractor struct {
	browser       Browser
	sites         []SiteAdapter
	screenshotDir string
	log           logger.Logger
}

// NewProductExtractor creates an extractor for the built-in marketplaces.
func NewProductExtractor(browser Browser, cfg ProductConfig, log logger.Logger) *ProductExtractor {
	return &ProductExtractor{
		browser:       browser,
		sites:         DefaultSites(),
		screenshotDir: cfg.ScreenshotDir,
		log:           log,
	}
}

// Extract acquires a session, navigates to url and runs the matching site
// adapter. The session is closed on every path.
func (e *ProductExtractor) Extract(ctx context.Context, url string) (product *models.ProductData, err error) {
	session, err := e.browser.NewSession(ctx)
	if err != nil {
		return nil, &models.ExtractionError{URL: url, Err: fmt.Errorf("start browser session: %w", err)}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			e.log.Warn("Failed to close browser session", logger.String("url", url), logger.Error(cerr))
		}
	}()
	defer func() {
		if err != nil {
			e.captureScreenshot(ctx, session, url)
		}
	}()

	if err := session.Navigate(ctx, url); err != nil {
		return nil, &models.ExtractionError{URL: url, Err: fmt.Errorf("navigate: %w", err)}
	}

	site, ok := e.match(url)
	if !ok {
		return nil, &models.ExtractionError{URL: url, Err: models.ErrUnsupportedSite}
	}

	product, err = site.Extract(ctx, session, e.log.With(logger.String("site", site.Name), logger.String("url", url)))
	if err != nil {
		return nil, &models.ExtractionError{URL: url, Err: err}
	}
	product.URL = url
	return product, nil
}

func (e *ProductExtractor) match(url string) (SiteAdapter, bool) {
	lower := strings.ToLower(url)
	for _, site := range e.sites {
		if strings.Contains(lower, site.Match) {
			return site, true
		}
	}
	return SiteAdapter{}, false
}

// captureScreenshot is best effort; failures are logged and dropped.
func (e *ProductExtractor) captureScreenshot(ctx context.Context, session Session, url string) {
	if e.screenshotDir == "" {
		return
	}
	if err := os.MkdirAll(e.screenshotDir, 0o755); err != nil {
		e.log.Debug("Cannot create screenshot directory", logger.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()

	path := filepath.Join(e.screenshotDir, fmt.Sprintf("debug-screenshot-%d.png", time.Now().UnixNano()))
	if err := session.Screenshot(ctx, path); err != nil {
		e.log.Debug("Screenshot failed", logger.String("url", url), logger.Error(err))
		return
	}
	e.log.Info("Saved debug screenshot", logger.String("url", url), logger.String("path", path))
}
