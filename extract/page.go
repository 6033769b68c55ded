// Package extract turns a URL into structured data for the content generator.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/models"
)

// Caps on how much of each kind of block is kept.
const (
	maxHeadings     = 15
	maxParagraphs   = 20
	maxLists        = 8
	maxTestimonials = 5
	maxContact      = 3
	maxFeatures     = 10
	maxPricing      = 5
	maxImages       = 5
	maxJSONLD       = 3
	maxContentRunes = 3000

	maxBodyBytes = 10 << 20
)

const (
	testimonialSelector = `[class*="review"], [class*="testimonial"], [class*="quote"], blockquote`
	contactSelector     = `[class*="contact"], [class*="address"], [class*="location"]`
	featureSelector     = `[class*="feature"], [class*="amenity"], [class*="service"], [class*="benefit"]`
	pricingSelector     = `[class*="price"], [class*="cost"], [class*="rate"]`
	contextHeadings     = "h1, h2, h3"
)

var (
	pricePattern = regexp.MustCompile(`[\$€£¥₹]|\d+`)

	errUnsupportedContent = errors.New("unsupported content type")

	// htmlTypes are parsed as markup. A missing Content-Type is treated as HTML.
	htmlTypes = map[string]bool{
		"":                      true,
		"text/html":             true,
		"application/xhtml+xml": true,
	}
)

// PageConfig configures the page extractor.
type PageConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// PageExtractor fetches a page over plain HTTP and derives content blocks
// from its markup with DOM heuristics.
type PageExtractor struct {
	client    *http.Client
	userAgent string
	log       logger.Logger
}

// NewPageExtractor creates an extractor with its own HTTP client.
func NewPageExtractor(cfg PageConfig, log logger.Logger) *PageExtractor {
	return &PageExtractor{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		log:       log,
	}
}

// Extract never returns an error. Any failure yields a record with only URL
// and Error set.
func (e *PageExtractor) Extract(ctx context.Context, url string) *models.PageData {
	page, err := e.fetch(ctx, url)
	if err != nil {
		e.log.Warn("Page extraction failed", logger.String("url", url), logger.Error(err))
		return &models.PageData{URL: url, Error: err.Error()}
	}
	return page
}

// fetch downloads url and parses it as HTML or, for PDF documents, reads
// its text layer.
func (e *PageExtractor) fetch(ctx context.Context, url string) (*models.PageData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	mediaType := contentType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/pdf" || bytes.HasPrefix(body, pdfMagic):
		page, err := parsePDF(url, body)
		if err != nil {
			return nil, fmt.Errorf("parse pdf %s: %w", url, err)
		}
		return page, nil
	case htmlTypes[mediaType]:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", url, err)
		}
		return parseDocument(url, doc), nil
	default:
		return nil, fmt.Errorf("fetch %s: %w %q", url, errUnsupportedContent, mediaType)
	}
}

func contentType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mediaType
}

func newPageData(url string) *models.PageData {
	return &models.PageData{
		URL:          url,
		Headings:     make([]models.Heading, 0),
		Paragraphs:   make([]models.Paragraph, 0),
		Lists:        make([]models.List, 0),
		Testimonials: make([]string, 0),
		ContactInfo:  make([]string, 0),
		Features:     make([]string, 0),
		Pricing:      make([]string, 0),
		Images:       make([]models.Image, 0),
		JSONLD:       make([]json.RawMessage, 0),
	}
}

func parseDocument(url string, doc *goquery.Document) *models.PageData {
	page := newPageData(url)
	page.Title = cleanText(doc.Find("title").First().Text())
	page.Description = metaContent(doc, `meta[name="description"]`)
	if page.Title == "" {
		page.Title = cleanText(doc.Find("h1").First().Text())
	}
	if page.Description == "" {
		page.Description = metaContent(doc, `meta[property="og:description"]`)
	}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if json.Valid([]byte(raw)) {
			page.JSONLD = append(page.JSONLD, json.RawMessage(raw))
		}
		return len(page.JSONLD) < maxJSONLD
	})

	doc.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := cleanText(s.Text()); text != "" {
			level := int(goquery.NodeName(s)[1] - '0')
			page.Headings = append(page.Headings, models.Heading{Level: level, Text: text})
		}
		return len(page.Headings) < maxHeadings
	})

	// Body blocks are collected in full so the content blob sees all of
	// them, then capped.
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := cleanText(s.Text()); utf8.RuneCountInString(text) > 30 {
			page.Paragraphs = append(page.Paragraphs, models.Paragraph{
				Text:        text,
				NearHeading: nearestHeading(s),
			})
		}
	})

	doc.Find("ul, ol").Each(func(_ int, s *goquery.Selection) {
		items := make([]string, 0)
		s.Find("li").Each(func(_ int, li *goquery.Selection) {
			if text := cleanText(li.Text()); text != "" {
				items = append(items, text)
			}
		})
		if len(items) > 0 {
			page.Lists = append(page.Lists, models.List{Items: items, NearHeading: nearestHeading(s)})
		}
	})

	page.Testimonials = collectText(doc, testimonialSelector, 0, lengthBetween(20, 500))
	page.ContactInfo = collectText(doc, contactSelector, maxContact, lengthBetween(10, 200))
	page.Features = collectText(doc, featureSelector, 0, lengthBetween(5, 100))
	page.Pricing = collectText(doc, pricingSelector, maxPricing, pricePattern.MatchString)

	doc.Find("img[alt]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		alt := cleanText(s.AttrOr("alt", ""))
		if utf8.RuneCountInString(alt) > 5 {
			page.Images = append(page.Images, models.Image{Alt: alt, Src: s.AttrOr("src", "")})
		}
		return len(page.Images) < maxImages
	})

	page.Content = combineContent(page)

	page.Paragraphs = capped(page.Paragraphs, maxParagraphs)
	page.Lists = capped(page.Lists, maxLists)
	page.Testimonials = capped(page.Testimonials, maxTestimonials)
	page.Features = capped(page.Features, maxFeatures)
	return page
}

func capped[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// combineContent joins the body blocks into one prompt-sized text blob.
func combineContent(page *models.PageData) string {
	parts := make([]string, 0, len(page.Paragraphs)+len(page.Testimonials)+len(page.Features))
	for _, p := range page.Paragraphs {
		parts = append(parts, p.Text)
	}
	for _, l := range page.Lists {
		parts = append(parts, l.Items...)
	}
	parts = append(parts, page.Testimonials...)
	parts = append(parts, page.Features...)

	return truncateRunes(strings.Join(parts, " "), maxContentRunes)
}

// collectText gathers matching text up to limit entries. A limit of zero
// collects everything.
func collectText(doc *goquery.Document, selector string, limit int, keep func(string) bool) []string {
	out := make([]string, 0)
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := cleanText(s.Text()); text != "" && keep(text) {
			out = append(out, text)
		}
		return limit <= 0 || len(out) < limit
	})
	return out
}

// lengthBetween matches text strictly longer than lo and shorter than hi runes.
func lengthBetween(lo, hi int) func(string) bool {
	return func(s string) bool {
		n := utf8.RuneCountInString(s)
		return n > lo && n < hi
	}
}

func nearestHeading(s *goquery.Selection) string {
	return cleanText(s.PrevAllFiltered(contextHeadings).First().Text())
}

func metaContent(doc *goquery.Document, selector string) string {
	return cleanText(doc.Find(selector).First().AttrOr("content", ""))
}

// cleanText collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
