package models

import "encoding/json"

// Heading is one h1-h6 element in document order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Paragraph is body text with the closest preceding h1-h3 for context.
type Paragraph struct {
	Text        string `json:"text"`
	NearHeading string `json:"near_heading,omitempty"`
}

// List is a ul/ol block.
type List struct {
	Items       []string `json:"items"`
	NearHeading string   `json:"near_heading,omitempty"`
}

// Image is an img element with descriptive alt text.
type Image struct {
	Alt string `json:"alt"`
	Src string `json:"src"`
}

// PageData is what the generic extractor derives from one page. When Error is
// set every other field except URL is empty.
type PageData struct {
	URL          string            `json:"url"`
	Error        string            `json:"error,omitempty"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Headings     []Heading         `json:"headings"`
	Paragraphs   []Paragraph       `json:"paragraphs"`
	Lists        []List            `json:"lists"`
	Testimonials []string          `json:"testimonials"`
	ContactInfo  []string          `json:"contact_info"`
	Features     []string          `json:"features"`
	Pricing      []string          `json:"pricing"`
	Images       []Image           `json:"images"`
	JSONLD       []json.RawMessage `json:"json_ld"`
	Content      string            `json:"content"`
}

// Failed reports whether extraction produced only an error.
func (p *PageData) Failed() bool {
	return p.Error != ""
}

// Summary returns the title and description reported with generated content.
func (p *PageData) Summary() Summary {
	return Summary{Title: p.Title, Description: p.Description}
}
