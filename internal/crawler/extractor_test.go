package crawler_test

import (
	"context"
	"testing"
	"time"

	"sjsage522/estateworker/internal/crawler"
	"sjsage522/estateworker/internal/crawler/crawlertest"
	"sjsage522/estateworker/internal/models"
	"sjsage522/estateworker/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingURL = "https://www.luxuryestate.com/p123-villa-marbella"

const fullListing = `<html><head>
<meta name="description" content="Meta description">
<script type="application/json" id="properties-hydration">{"id":123,"title":"Villa X","price":{"amount":"1,200,000","currencyCode":"EUR"},"location":{"city":"Marbella","postalCode":"29660"},"bedrooms":5,"type":"Villa"}</script>
<script type="application/json" id="gallery-hydration">{"propertyFloorPlans":[{"src":"https://img.example/plan1.jpg"}],"videoUrl":"https://video.example/v"}</script>
<script type="application/json" id="features-hydration">{"extraFeatures":[{"label":"exteriorAmenities","value":"[\"Swimming Pool\",\"Garage\"]"},{"label":"interiorAmenities","value":["Fireplace"]}],"geoInfo":{"ADM1":{"translations":{"en_GB":"Andalusia"}},"PCLI":{"translations":{"en_GB":"Spain"}}},"transaction":"sale","creationTime":"2024-01-02"}</script>
<script type="application/json" id="agency-hydration">{"agencyName":"Costa Homes","agencyLogo":{"img":"https://img.example/logo.png"},"agencyPhoneCrypted":"+34 600","agencyLocation":"Marbella"}</script>
</head><body>
<div class="lx-property__mainContent">
  <div data-role="description-text-container">Container text
    <div data-role="description-text-content">A  beautiful
      villa</div>
  </div>
  <ul>
    <li class="feat-item"><span class="feat-label">Bathrooms:</span><span class="single-value">4 baths</span></li>
    <li class="feat-item"><span class="feat-label">Size:</span><span class="single-value">450 m²</span></li>
    <li class="feat-item"><span class="feat-label">View:</span><span class="multiple-values">Sea</span><span class="multiple-values">Mountain</span></li>
    <li class="feat-item"><span class="feat-label">Sauna</span></li>
    <li class="feat-item"><span class="feat-label">Floor:</span><span class="single-value">1</span></li>
    <li class="feat-item"><span class="feat-label">Floor:</span><span class="single-value">2</span></li>
  </ul>
  <img src="https://cdn.example/properties/a.jpg">
  <img src="https://cdn.example/properties/placeholder.jpg">
  <img src="/properties/b.jpg">
  <img src="https://cdn.example/properties/a.jpg">
  <img src="https://cdn.example/logo.png">
</div>
</body></html>`

func newExtractor(opts crawler.ExtractorOptions) *crawler.Extractor {
	return crawler.NewExtractor(opts, logger.Nop())
}

func TestExtractFullListing(t *testing.T) {
	page := crawlertest.NewPage(listingURL, fullListing)

	raw, err := newExtractor(crawler.ExtractorOptions{}).Extract(context.Background(), page)
	require.NoError(t, err)

	assert.True(t, raw.HasProperty)
	assert.Equal(t, "123", raw.Property.ID.String())
	assert.Equal(t, "A beautiful villa", raw.Description)
	assert.Equal(t, []string{"Swimming Pool", "Garage"}, raw.Exterior)
	assert.Equal(t, []string{"Fireplace"}, raw.Interior)
	assert.Equal(t, []string{
		"https://cdn.example/properties/a.jpg",
		"https://www.luxuryestate.com/properties/b.jpg",
	}, raw.Images)

	assert.Equal(t, models.Text("4 baths"), raw.DOMFeatures["Bathrooms"])
	assert.Equal(t, models.Multi([]string{"Sea", "Mountain"}), raw.DOMFeatures["View"])
	assert.Equal(t, models.Present(), raw.DOMFeatures["Sauna"])
	assert.Equal(t, models.Text("2"), raw.DOMFeatures["Floor"], "repeated labels overwrite")
	assert.Nil(t, raw.Contact)
}

func TestExtractWithoutGalleryPayload(t *testing.T) {
	html := `<html><head><script type="application/json" id="properties-hydration">{"id":"9","title":"Flat"}</script></head><body></body></html>`
	page := crawlertest.NewPage(listingURL, html)

	raw, err := newExtractor(crawler.ExtractorOptions{}).Extract(context.Background(), page)
	require.NoError(t, err)

	rec := crawler.BuildRecord(raw, time.Now())
	assert.Equal(t, "9", rec.ExternalID)
	assert.NotNil(t, rec.Media.Images)
	assert.Empty(t, rec.Media.Images)
}

func TestExtractWithoutPrimaryPayloadOrReference(t *testing.T) {
	html := `<html><body><div class="lx-property__mainContent"><img src="https://cdn.example/properties/a.jpg"></div></body></html>`
	page := crawlertest.NewPage(listingURL, html)

	raw, err := newExtractor(crawler.ExtractorOptions{}).Extract(context.Background(), page)
	assert.ErrorIs(t, err, crawler.ErrNoPrimaryPayload)
	assert.Nil(t, raw)
}

func TestExtractEmptyPrimaryPayloadIsAbsent(t *testing.T) {
	html := `<html><head><script type="application/json" id="properties-hydration">{}</script></head><body></body></html>`
	page := crawlertest.NewPage(listingURL, html)

	_, err := newExtractor(crawler.ExtractorOptions{}).Extract(context.Background(), page)
	assert.ErrorIs(t, err, crawler.ErrNoPrimaryPayload)
}

func TestExtractFallsBackToReferenceFeature(t *testing.T) {
	html := `<html><head><script type="application/json" id="properties-hydration">{not json</script></head><body>
<li class="feat-item"><span class="feat-label">Reference:</span><span class="single-value">ab 12 cd</span></li>
</body></html>`
	page := crawlertest.NewPage(listingURL, html)

	raw, err := newExtractor(crawler.ExtractorOptions{}).Extract(context.Background(), page)
	require.NoError(t, err)
	assert.False(t, raw.HasProperty)

	rec := crawler.BuildRecord(raw, time.Now())
	assert.Equal(t, "AB-12-CD", rec.ExternalID)
	assert.Equal(t, "Property ab 12 cd", rec.Title)
}

func TestExtractDescriptionFallsBackToMeta(t *testing.T) {
	html := `<html><head><meta name="description" content=" From meta "><script type="application/json" id="properties-hydration">{"id":"1"}</script></head><body></body></html>`
	page := crawlertest.NewPage(listingURL, html)

	raw, err := newExtractor(crawler.ExtractorOptions{}).Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "From meta", raw.Description)
}

const galleryListing = `<html><head><script type="application/json" id="properties-hydration">{"id":"7"}</script></head><body>
<button data-role="gallery-open">Photos</button>
<img src="https://cdn.example/properties/inline.jpg">
</body></html>`

const galleryOpen = `<html><body>
<div class="lx-gallery-overlay">
  <img src="https://cdn.example/properties/thumbs/320x240/one.jpg">
  <img data-src="https://cdn.example/properties/800x600/two.jpg">
  <img src="https://cdn.example/properties/one.jpg">
  <button class="lx-gallery-overlay__close">x</button>
</div></body></html>`

func TestGalleryModalStrategy(t *testing.T) {
	browser := crawlertest.NewBrowser(map[string]string{listingURL: galleryListing})
	browser.OnClick[`[data-role="gallery-open"]`] = galleryOpen
	browser.OnClick[".lx-gallery-overlay__close"] = galleryListing

	page, err := browser.NewPage(context.Background())
	require.NoError(t, err)
	require.NoError(t, page.Navigate(context.Background(), listingURL))

	sel := crawler.DefaultSelectors()
	ex := newExtractor(crawler.ExtractorOptions{
		Selectors: sel,
		Images:    crawler.NewGalleryModal(sel, time.Second, logger.Nop()),
	})
	raw, err := ex.Extract(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://cdn.example/properties/one.jpg",
		"https://cdn.example/properties/two.jpg",
	}, raw.Images)
	assert.Equal(t, []string{`[data-role="gallery-open"]`, ".lx-gallery-overlay__close"}, page.(*crawlertest.Page).Clicks)
}

func TestGalleryModalWithoutTrigger(t *testing.T) {
	html := `<html><head><script type="application/json" id="properties-hydration">{"id":"7"}</script></head><body></body></html>`
	page := crawlertest.NewPage(listingURL, html)

	sel := crawler.DefaultSelectors()
	ex := newExtractor(crawler.ExtractorOptions{
		Selectors: sel,
		Images:    crawler.NewGalleryModal(sel, time.Second, logger.Nop()),
	})
	raw, err := ex.Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Empty(t, raw.Images)
}

func TestFullResolution(t *testing.T) {
	assert.Equal(t, "https://x/properties/a.jpg", crawler.FullResolution("https://x/properties/thumbs/320x240/a.jpg"))
	assert.Equal(t, "https://x/properties/a.jpg", crawler.FullResolution("https://x/properties/1024x768/a.jpg"))
	assert.Equal(t, "https://x/properties/a.jpg", crawler.FullResolution("https://x/properties/a.jpg"))
}

const agencyListing = `<html><head><script type="application/json" id="properties-hydration">{"id":"7"}</script>
<script type="application/json" id="agency-hydration">{"agencyName":"Payload Agency","agencyPhoneCrypted":"xyz"}</script></head><body>
<button data-role="agency-contact">Contact</button>
</body></html>`

const agencyOpen = `<html><body><div class="lx-contact-modal">
<span class="agency-name"> Modal Agency </span><span class="agency-phone">+34 (952) 12-34</span>
<button class="lx-contact-modal__close">x</button></div></body></html>`

func TestAgencyModalContact(t *testing.T) {
	browser := crawlertest.NewBrowser(map[string]string{listingURL: agencyListing})
	browser.OnClick[`[data-role="agency-contact"]`] = agencyOpen
	page, _ := browser.NewPage(context.Background())
	require.NoError(t, page.Navigate(context.Background(), listingURL))

	raw, err := newExtractor(crawler.ExtractorOptions{AgencyModal: true, SelectorTimeout: time.Second}).Extract(context.Background(), page)
	require.NoError(t, err)
	require.NotNil(t, raw.Contact)
	assert.Equal(t, "Modal Agency", raw.Contact.Name)
	assert.Equal(t, "349521234", raw.Contact.Phone)

	rec := crawler.BuildRecord(raw, time.Now())
	require.NotNil(t, rec.Agency)
	assert.Equal(t, "Modal Agency", rec.Agency.Name)
	assert.Equal(t, "349521234", rec.Agency.Phone)
}

func TestAgencyModalFailureKeepsPayloadAgency(t *testing.T) {
	page := crawlertest.NewPage(listingURL, agencyListing)

	// The click succeeds but the modal never renders.
	raw, err := newExtractor(crawler.ExtractorOptions{AgencyModal: true, SelectorTimeout: time.Second}).Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Nil(t, raw.Contact)

	rec := crawler.BuildRecord(raw, time.Now())
	require.NotNil(t, rec.Agency)
	assert.Equal(t, "Payload Agency", rec.Agency.Name)
	assert.Equal(t, "xyz", rec.Agency.Phone)
}
