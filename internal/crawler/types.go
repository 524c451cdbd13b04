package crawler

// Selectors contains CSS selectors and markers for the listing site
type Selectors struct {
	// Detail page
	ContentReady    string
	PropertyPayload string
	GalleryPayload  string
	FeaturesPayload string
	AgencyPayload   string

	FeatureItem    string
	FeatureLabel   string
	SingleValue    string
	MultipleValues string

	Image             string
	PlaceholderMarker string

	DescriptionContainer string
	DescriptionContent   string
	MetaDescription      string

	AgencyName string

	// Gallery overlay
	GalleryTrigger string
	GalleryOverlay string
	GalleryImage   string
	GalleryClose   string

	// Agency contact modal
	AgencyTrigger    string
	AgencyModal      string
	AgencyModalName  string
	AgencyModalPhone string
	AgencyModalClose string

	// Search results
	SearchItem    string
	SearchLink    string
	NoResultsText string
}

// DefaultSelectors returns the selectors of luxuryestate.com
func DefaultSelectors() Selectors {
	return Selectors{
		ContentReady:    ".lx-property__mainContent",
		PropertyPayload: "properties-hydration",
		GalleryPayload:  "gallery-hydration",
		FeaturesPayload: "features-hydration",
		AgencyPayload:   "agency-hydration",

		FeatureItem:    ".feat-item",
		FeatureLabel:   ".feat-label",
		SingleValue:    ".single-value",
		MultipleValues: ".multiple-values",

		Image:             `img[src*="properties"]`,
		PlaceholderMarker: "placeholder",

		DescriptionContainer: `[data-role="description-text-container"]`,
		DescriptionContent:   `[data-role="description-text-content"]`,
		MetaDescription:      `meta[name="description"]`,

		AgencyName: ".agency__name-container a",

		GalleryTrigger: `[data-role="gallery-open"]`,
		GalleryOverlay: ".lx-gallery-overlay",
		GalleryImage:   ".lx-gallery-overlay img",
		GalleryClose:   ".lx-gallery-overlay__close",

		AgencyTrigger:    `[data-role="agency-contact"]`,
		AgencyModal:      ".lx-contact-modal",
		AgencyModalName:  ".lx-contact-modal .agency-name",
		AgencyModalPhone: ".lx-contact-modal .agency-phone",
		AgencyModalClose: ".lx-contact-modal__close",

		SearchItem:    ".search-list__item",
		SearchLink:    `.search-list__item a[href^="https://www.luxuryestate.com/p"]`,
		NoResultsText: "No properties found",
	}
}
