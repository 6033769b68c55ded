package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jupark12/go-content-queue/models"
	"github.com/ledongthuc/pdf"
)

var (
	pdfMagic  = []byte("%PDF-")
	errNoText = errors.New("document has no text layer")
)

// parsePDF reads the text layer of a PDF document. Lines longer than a
// short label become paragraphs under a "Page N" heading.
func parsePDF(url string, body []byte) (page *models.PageData, err error) {
	// The reader panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			page, err = nil, fmt.Errorf("malformed document: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, err
	}

	page = newPageData(url)
	page.Title = cleanText(r.Trailer().Key("Info").Key("Title").Text())

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read text from page %d: %w", i, err)
		}

		heading := fmt.Sprintf("Page %d", i)
		for _, line := range strings.Split(text, "\n") {
			if line = cleanText(line); line == "" {
				continue
			}
			lines = append(lines, line)
			if utf8.RuneCountInString(line) > 30 && len(page.Paragraphs) < maxParagraphs {
				page.Paragraphs = append(page.Paragraphs, models.Paragraph{Text: line, NearHeading: heading})
			}
		}
	}
	if len(lines) == 0 {
		return nil, errNoText
	}

	if page.Title == "" {
		page.Title = lines[0]
	}
	page.Content = truncateRunes(strings.Join(lines, " "), maxContentRunes)
	return page, nil
}
