package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/models"
)

// Field names a ProductData attribute a site adapter fills.
type Field string

const (
	FieldName        Field = "name"
	FieldPrice       Field = "price"
	FieldDescription Field = "description"
	FieldImages      Field = "images"
	FieldBrand       Field = "brand"
)

var (
	errNoMatch    = errors.New("no matching element")
	nonPriceChars = regexp.MustCompile(`[^0-9.]`)
	leadingNumber = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)`)
)

// Locator describes one way of reading a field from the page.
type Locator struct {
	Selector string
	// Frame reads Selector inside the iframe it matches.
	Frame string
	// Click is pressed before reading, and WaitVisible awaited after it.
	Click       string
	WaitVisible string
	// Attrs reads the first non-empty attribute instead of the text.
	Attrs []string
}

// FieldSpec lists locators for a field. The first one yielding a non-empty
// value wins.
type FieldSpec struct {
	Field    Field
	Locators []Locator
}

// SiteAdapter extracts a product from one marketplace's page layout.
type SiteAdapter struct {
	Name string
	// Match is a substring of the URL selecting this adapter.
	Match  string
	Fields []FieldSpec
}

// Extract evaluates every field independently. A missing field is recorded
// as a warning and left at its zero value.
func (a SiteAdapter) Extract(ctx context.Context, s Session, log logger.Logger) (*models.ProductData, error) {
	product := &models.ProductData{Site: a.Name, Images: make([]string, 0)}
	for _, spec := range a.Fields {
		values, err := evaluate(ctx, s, spec)
		if err != nil {
			warning := fmt.Sprintf("%s: %v", spec.Field, err)
			log.Warn("Product field not found", logger.String("field", string(spec.Field)), logger.Error(err))
			product.Warnings = append(product.Warnings, warning)
			continue
		}
		if w := apply(product, spec.Field, values); w != "" {
			log.Warn("Product field unusable", logger.String("field", string(spec.Field)), logger.String("reason", w))
			product.Warnings = append(product.Warnings, w)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if product.Description == "" {
		product.Description = product.Name
	}
	if len(product.Images) > 0 {
		product.Image = product.Images[0]
	}
	return product, nil
}

func evaluate(ctx context.Context, s Session, spec FieldSpec) ([]string, error) {
	lastErr := errNoMatch
	for _, loc := range spec.Locators {
		values, err := read(ctx, s, loc)
		if err != nil {
			lastErr = err
			continue
		}
		if values = nonEmpty(values); len(values) > 0 {
			return values, nil
		}
	}
	return nil, lastErr
}

func read(ctx context.Context, s Session, loc Locator) ([]string, error) {
	if loc.Click != "" {
		if err := s.Click(ctx, loc.Click); err != nil {
			return nil, fmt.Errorf("click %s: %w", loc.Click, err)
		}
	}
	if loc.WaitVisible != "" {
		if err := s.WaitVisible(ctx, loc.WaitVisible); err != nil {
			return nil, fmt.Errorf("wait for %s: %w", loc.WaitVisible, err)
		}
	}

	switch {
	case loc.Frame != "":
		return s.FrameText(ctx, loc.Frame, loc.Selector)
	case len(loc.Attrs) > 0:
		return s.Attribute(ctx, loc.Selector, loc.Attrs...)
	default:
		return s.Text(ctx, loc.Selector)
	}
}

// apply stores values on the product and returns a warning when they
// cannot be used.
func apply(p *models.ProductData, field Field, values []string) string {
	switch field {
	case FieldName:
		p.Name = values[0]
	case FieldPrice:
		price, ok := parsePrice(values[0])
		if !ok {
			return fmt.Sprintf("price: cannot parse %q", values[0])
		}
		p.Price = price
	case FieldDescription:
		p.Description = strings.Join(values, "\n\n")
	case FieldImages:
		p.Images = dedupe(values)
	case FieldBrand:
		p.Brand = values[0]
	}
	return ""
}

// parsePrice keeps digits and dots from display text such as "US $1,299.00"
// and reads the leading number, so trailing punctuation is ignored.
func parsePrice(text string) (float64, bool) {
	number := leadingNumber.FindString(nonPriceChars.ReplaceAllString(text, ""))
	if number == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = cleanText(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
