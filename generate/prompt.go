// Package generate turns extracted page data into prompts and sends them to
// a text-completion service.
package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jupark12/go-content-queue/models"
)

// ArticleSystemPrompt frames the model for article generation.
const ArticleSystemPrompt = "You are an expert SEO content writer who creates high-quality, original HTML articles " +
	"that convert visitors into customers. Focus on unique value propositions and customer benefits."

// ProductSystemPrompt frames the model for product data extraction.
const ProductSystemPrompt = "You are an expert data extractor for e-commerce websites. " +
	"Your task is to return a single, valid JSON object with the product data."

const articleTemplate = `You are an expert SEO content writer. Generate a complete HTML article based on the provided content and requirements.

CONTENT REQUIREMENTS:
- Focus on products or services with unique selling points
- Highlight customer experience
- Include location advantages
- Detail menu/offerings/amenities
- Show competitive differentiators

SEO SPECIFICATIONS:
- Include primary and secondary keywords naturally
- Meta description under 160 characters
- Proper H1-H3 heading hierarchy (only one H1)
- Local SEO elements

CONTENT STRUCTURE:
- Engaging H1 title with primary keyword
- Introductory paragraph (hook + value proposition)
- 4-6 detailed sections with H2 headers
- Subsections with H3 headers where needed
- Bullet-point lists for features
- Customer review/quote highlights
- Call-to-action

STYLING REQUIREMENTS:
- Font: Black text only (#000000)
- Headings: Bold only
- H1 with bottom border
- Light gray highlight boxes for testimonials
- Clean, spacious layout
- Mobile-responsive design

TONE & STYLE:
- Professional yet approachable
- Benefit-focused language
- Active voice
- Concise paragraphs (max 3-4 sentences)

Generate a complete HTML document with embedded CSS that follows these requirements exactly.
`

const articleInstructions = `INSTRUCTIONS:
1. Create a unique, SEO-optimized article that focuses on the business's unique selling points
2. Highlight customer experience and location advantages
3. Include specific features, amenities, and competitive differentiators found in the scraped content
4. Use testimonials naturally within the content
5. Generate proper meta description under 160 characters
6. Create engaging H1 title with primary keyword related to the business
7. Structure with 4-6 H2 sections and appropriate H3 subsections
8. Include bullet points for features and a strong call-to-action
9. Follow the exact styling requirements (black text, bold headings, minimal decoration)
10. Make the article ready to publish and mobile-responsive

Generate a complete, professional HTML article now:`

const productTemplate = `You are an expert data extractor for e-commerce websites. Your task is to extract product information from the provided scraped content and return it as a valid JSON object.

**JSON Object Structure:**
The JSON object must conform to the following structure. Do not add any extra fields.
{
  "name": "String",
  "description": "String",
  "price": "Number",
  "comparePrice": "Number",
  "category": "String",
  "subcategory": "String",
  "brand": "String",
  "image": "String (URL)",
  "images": ["String (URL)"],
  "countInStock": "Number",
  "rating": "Number (0-5)",
  "numReviews": "Number",
  "specifications": { "key": "value" },
  "tags": ["String"],
  "sku": "String",
  "seoTitle": "String",
  "seoDescription": "String"
}

**Instructions:**
1.  **Analyze the scraped content**: Carefully review the extracted listing fields.
2.  **Extract data for each field**: Fill in the JSON object with the extracted information.
3.  **Handle missing data**: If a value is not found, use a reasonable default (e.g., empty string for text, 0 for numbers, empty array for lists). For 'countInStock', if not specified, default to 10.
4.  **price and comparePrice**: These should be numbers, not strings. Remove currency symbols. If there's only one price, use it for 'price' and leave 'comparePrice' as 0.
5.  **images**: The 'image' field should be the main product image. The 'images' field should be an array of all product image URLs.
6.  **description**: Provide a detailed and clean product description. Remove any HTML tags.
7.  **specifications**: Extract key-value pairs of product specifications if available.
8.  **Output**: Return only the raw JSON object. Do not wrap it in markdown or any other text.
`

// BuildArticlePrompt appends the page's extracted blocks to the article template.
func BuildArticlePrompt(page *models.PageData) string {
	var b strings.Builder
	b.WriteString(articleTemplate)

	fmt.Fprintf(&b, "\nSCRAPED CONTENT FROM: %s\n\n", page.URL)

	b.WriteString("BASIC INFORMATION:\n")
	fmt.Fprintf(&b, "- Title: %s\n", page.Title)
	fmt.Fprintf(&b, "- Meta Description: %s\n\n", page.Description)

	headings := make([]string, len(page.Headings))
	for i, h := range page.Headings {
		headings[i] = fmt.Sprintf("H%d: %s", h.Level, h.Text)
	}
	b.WriteString("CONTENT STRUCTURE:\n")
	fmt.Fprintf(&b, "- Headings: %s\n", strings.Join(headings, " | "))
	fmt.Fprintf(&b, "- Main Content: %s\n\n", page.Content)

	b.WriteString("BUSINESS DETAILS:\n")
	fmt.Fprintf(&b, "- Features/Services: %s\n", strings.Join(page.Features, ", "))
	fmt.Fprintf(&b, "- Pricing Information: %s\n", strings.Join(page.Pricing, ", "))
	fmt.Fprintf(&b, "- Contact/Location: %s\n\n", strings.Join(page.ContactInfo, " | "))

	b.WriteString("CUSTOMER EXPERIENCE:\n")
	fmt.Fprintf(&b, "- Testimonials/Reviews: %s\n\n", strings.Join(page.Testimonials, " | "))

	b.WriteString("CONTENT LISTS:\n")
	for _, l := range page.Lists {
		fmt.Fprintf(&b, "- %s: %s\n", l.NearHeading, strings.Join(l.Items, ", "))
	}
	b.WriteString("\n")

	alts := make([]string, len(page.Images))
	for i, img := range page.Images {
		alts[i] = img.Alt
	}
	b.WriteString("VISUAL ELEMENTS:\n")
	fmt.Fprintf(&b, "- Image Descriptions: %s\n\n", strings.Join(alts, ", "))

	b.WriteString("STRUCTURED DATA:\n")
	b.WriteString(structuredData(page.JSONLD))
	b.WriteString("\n\n")

	b.WriteString(articleInstructions)
	return b.String()
}

// structuredData pretty-prints the first JSON-LD block.
func structuredData(blocks []json.RawMessage) string {
	if len(blocks) == 0 {
		return "None available"
	}
	var v any
	if err := json.Unmarshal(blocks[0], &v); err != nil {
		return "None available"
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "None available"
	}
	return string(out)
}

// BuildProductPrompt appends the listing fields to the product template.
func BuildProductPrompt(product *models.ProductData) string {
	var b strings.Builder
	b.WriteString(productTemplate)

	fmt.Fprintf(&b, "\n**Scraped Content from URL:** %s\n\n", product.URL)
	b.WriteString("**Extracted Information:**\n")
	fmt.Fprintf(&b, "- Marketplace: %s\n", product.Site)
	fmt.Fprintf(&b, "- Title: %s\n", product.Name)
	fmt.Fprintf(&b, "- Description: %s\n", product.Description)
	fmt.Fprintf(&b, "- Price: %g\n", product.Price)
	fmt.Fprintf(&b, "- Brand: %s\n", product.Brand)
	fmt.Fprintf(&b, "- Main Image: %s\n", product.Image)
	fmt.Fprintf(&b, "- Images: %s\n", strings.Join(product.Images, ", "))
	if len(product.Warnings) > 0 {
		fmt.Fprintf(&b, "- Fields not found on the page: %s\n", strings.Join(product.Warnings, "; "))
	}

	b.WriteString("\n**Instructions:**\nGenerate the JSON object based on the provided data.\n")
	return b.String()
}
