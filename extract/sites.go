package extract

// DefaultSites returns the supported marketplaces.
func DefaultSites() []SiteAdapter {
	return []SiteAdapter{ebay(), etsy()}
}

func ebay() SiteAdapter {
	return SiteAdapter{
		Name:  "ebay",
		Match: "ebay.com",
		Fields: []FieldSpec{
			{Field: FieldName, Locators: []Locator{
				{WaitVisible: "h1.x-item-title__mainTitle", Selector: "h1.x-item-title__mainTitle .ux-textspans"},
			}},
			{Field: FieldPrice, Locators: []Locator{
				{Selector: ".x-price-primary .ux-textspans"},
			}},
			{Field: FieldDescription, Locators: []Locator{
				{Frame: "iframe#desc_ifr", Selector: "div#ds_div"},
				{Selector: "#viTabs_0_is"},
			}},
			{Field: FieldImages, Locators: []Locator{
				{Selector: ".ux-image-carousel-item img", Attrs: []string{"data-src", "src"}},
			}},
			{Field: FieldBrand, Locators: []Locator{
				{Selector: ".x-sellercard-atf__info__about-seller .ux-textspans--BOLD"},
			}},
		},
	}
}

func etsy() SiteAdapter {
	return SiteAdapter{
		Name:  "etsy",
		Match: "etsy.com",
		Fields: []FieldSpec{
			{Field: FieldName, Locators: []Locator{
				{Selector: "h1.wt-text-body-03"},
			}},
			{Field: FieldPrice, Locators: []Locator{
				{Selector: "p.wt-text-title-03"},
			}},
			{Field: FieldDescription, Locators: []Locator{
				{
					Click:       "button#listing-page-description-button",
					WaitVisible: ".wt-content-toggle__body",
					Selector:    `.wt-content-toggle__body [data-id="description-text"] p`,
				},
				{Selector: `[data-id="description-text"] p`},
			}},
			{Field: FieldImages, Locators: []Locator{
				{Selector: ".wt-position-absolute img", Attrs: []string{"src"}},
			}},
			{Field: FieldBrand, Locators: []Locator{
				{Selector: ".wt-text-body-01"},
			}},
		},
	}
}
