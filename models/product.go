package models

// ProductData is what a site adapter reads from a marketplace listing.
type ProductData struct {
	URL         string   `json:"url"`
	Site        string   `json:"site"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Images      []string `json:"images"`
	Brand       string   `json:"brand"`
	// Warnings lists fields that could not be located on the page.
	Warnings []string `json:"warnings,omitempty"`
}

// Summary returns the product name and description.
func (p *ProductData) Summary() Summary {
	return Summary{Title: p.Name, Description: p.Description}
}
