package crawler

import (
	"context"
	"errors"
	"strings"
	"time"

	"sjsage522/estateworker/helpers"
	"sjsage522/estateworker/internal/models"
	"sjsage522/estateworker/internal/normalize"
	"sjsage522/estateworker/logger"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoPrimaryPayload is returned when a page has neither a property payload
// nor a Reference feature to derive an id from.
var ErrNoPrimaryPayload = errors.New("no primary property payload on page")

// RawListing holds everything read from one detail page before it is mapped
// to a PropertyRecord.
type RawListing struct {
	URL string

	// HasProperty is false when the primary payload was absent, empty or
	// unparsable.
	HasProperty bool
	Property    PropertyPayload
	Gallery     GalleryPayload
	Features    FeaturesPayload
	Agency      AgencyPayload

	DOMFeatures   models.Features
	Description   string
	DOMAgencyName string
	Exterior      []string
	Interior      []string
	Images        []string
	Contact       *AgencyContact
}

// ExtractorOptions configures an Extractor
type ExtractorOptions struct {
	Selectors       Selectors
	Images          ImageStrategy
	AgencyModal     bool
	SelectorTimeout time.Duration
}

// Extractor reads listings from detail pages
type Extractor struct {
	sel             Selectors
	images          ImageStrategy
	agencyModal     bool
	selectorTimeout time.Duration
	logger          *logger.Logger
}

// NewExtractor creates an extractor. Zero options fall back to the site
// defaults and direct DOM image discovery.
func NewExtractor(opts ExtractorOptions, log *logger.Logger) *Extractor {
	if opts.Selectors == (Selectors{}) {
		opts.Selectors = DefaultSelectors()
	}
	if opts.SelectorTimeout <= 0 {
		opts.SelectorTimeout = 15 * time.Second
	}
	if opts.Images == nil {
		opts.Images = NewDirectDOM(opts.Selectors)
	}
	return &Extractor{
		sel:             opts.Selectors,
		images:          opts.Images,
		agencyModal:     opts.AgencyModal,
		selectorTimeout: opts.SelectorTimeout,
		logger:          log.ForComponent("extractor"),
	}
}

// Extract reads the listing on page. Optional parts that fail are logged and
// left empty; ErrNoPrimaryPayload is the only extraction failure.
func (e *Extractor) Extract(ctx context.Context, page Page) (*RawListing, error) {
	doc, err := Snapshot(ctx, page)
	if err != nil {
		return nil, err
	}

	raw := &RawListing{URL: page.URL()}
	log := e.logger.WithField("url", raw.URL)

	if text, ok := scriptJSON(doc, e.sel.PropertyPayload); ok && !isEmptyObject(text) {
		if err := decodePayload(text, &raw.Property); err != nil {
			log.Warn().Err(err).Msg("Invalid property payload")
			raw.Property = PropertyPayload{}
		} else {
			raw.HasProperty = true
		}
	}
	e.decodeOptional(doc, e.sel.GalleryPayload, &raw.Gallery, log)
	e.decodeOptional(doc, e.sel.FeaturesPayload, &raw.Features, log)
	e.decodeOptional(doc, e.sel.AgencyPayload, &raw.Agency, log)

	raw.DOMFeatures = e.domFeatures(doc)

	if !raw.HasProperty {
		if _, ok := raw.DOMFeatures.Get("Reference"); !ok {
			return nil, ErrNoPrimaryPayload
		}
		log.Info().Msg("No property payload, falling back to Reference feature")
	}

	raw.Description = e.description(doc)
	raw.DOMAgencyName = cleanText(doc.Find(e.sel.AgencyName).First().Text())
	raw.Exterior, raw.Interior = e.amenityLists(raw)

	raw.Images = e.images.Discover(ctx, page, doc)

	if e.agencyModal {
		raw.Contact = e.agencyContact(ctx, page)
	}

	log.Debug().
		Bool("has_payload", raw.HasProperty).
		Int("features", len(raw.DOMFeatures)).
		Int("images", len(raw.Images)).
		Msg("Extracted listing")
	return raw, nil
}

func (e *Extractor) decodeOptional(doc *goquery.Document, id string, out any, log *logger.Logger) {
	text, ok := scriptJSON(doc, id)
	if !ok {
		return
	}
	if err := decodePayload(text, out); err != nil {
		log.Warn().Err(err).Str("payload", id).Msg("Invalid optional payload")
	}
}

// domFeatures builds the label map of the features list. A label with no
// value element is a presence flag; repeated labels overwrite.
func (e *Extractor) domFeatures(doc *goquery.Document) models.Features {
	features := models.Features{}
	doc.Find(e.sel.FeatureItem).Each(func(_ int, item *goquery.Selection) {
		labelEl := item.Find(e.sel.FeatureLabel).First()
		if labelEl.Length() == 0 {
			return
		}
		label := strings.TrimSpace(strings.TrimSuffix(cleanText(labelEl.Text()), ":"))
		if label == "" {
			return
		}

		values := item.Find(e.sel.SingleValue + ", " + e.sel.MultipleValues)
		switch values.Length() {
		case 0:
			features[label] = models.Present()
		case 1:
			features[label] = models.Text(cleanText(values.Text()))
		default:
			list := make([]string, 0, values.Length())
			values.Each(func(_ int, v *goquery.Selection) {
				list = append(list, cleanText(v.Text()))
			})
			features[label] = models.Multi(list)
		}
	})
	return features
}

// description prefers the content block, then its container, then the meta
// description.
func (e *Extractor) description(doc *goquery.Document) string {
	container := doc.Find(e.sel.DescriptionContainer).First()
	if text := cleanText(container.Find(e.sel.DescriptionContent).First().Text()); text != "" {
		return text
	}
	if text := cleanText(doc.Find(e.sel.DescriptionContent).First().Text()); text != "" {
		return text
	}
	if text := strings.TrimSpace(container.Text()); text != "" {
		return text
	}
	content, _ := doc.Find(e.sel.MetaDescription).First().Attr("content")
	return strings.TrimSpace(content)
}

// amenityLists merges the payload and DOM amenity lists.
func (e *Extractor) amenityLists(raw *RawListing) (exterior, interior []string) {
	if v, ok := raw.Features.Extra("exteriorAmenities"); ok {
		exterior = append(exterior, normalize.NormalizeAmenityField(v)...)
	}
	if v, ok := raw.Features.Extra("interiorAmenities"); ok {
		interior = append(interior, normalize.NormalizeAmenityField(v)...)
	}
	if v, ok := raw.DOMFeatures.Get("Exterior Amenities"); ok {
		exterior = append(exterior, normalize.NormalizeAmenityField(v.Raw())...)
	}
	if v, ok := raw.DOMFeatures.Get("Interior Amenities"); ok {
		interior = append(interior, normalize.NormalizeAmenityField(v.Raw())...)
	}
	return dedupe(exterior), dedupe(interior)
}

// resolveImage makes src absolute against the page address.
func resolveImage(pageURL, src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return helpers.ResolveURL(pageURL, src)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
