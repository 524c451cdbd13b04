package crawler

import (
	"context"
	"regexp"
	"strings"
	"time"

	"sjsage522/estateworker/logger"

	"github.com/PuerkitoBio/goquery"
)

// ImageStrategy discovers the photo URLs of a listing in page order.
type ImageStrategy interface {
	Discover(ctx context.Context, page Page, doc *goquery.Document) []string
}

// DirectDOM collects every listing image already present in the document.
type DirectDOM struct {
	sel Selectors
}

// NewDirectDOM creates the direct DOM image strategy
func NewDirectDOM(sel Selectors) *DirectDOM {
	return &DirectDOM{sel: sel}
}

func (d *DirectDOM) Discover(ctx context.Context, page Page, doc *goquery.Document) []string {
	var images []string
	doc.Find(d.sel.Image).Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" || strings.Contains(src, d.sel.PlaceholderMarker) {
			return
		}
		images = append(images, resolveImage(page.URL(), src))
	})
	return dedupe(images)
}

// thumbnailSegment matches the size segment of gallery thumbnails such as
// /thumbs/320x240/ or /800x600/.
var thumbnailSegment = regexp.MustCompile(`/(?:thumbs/)?\d+x\d+/`)

// FullResolution rewrites a thumbnail URL to its full-size original.
func FullResolution(src string) string {
	return thumbnailSegment.ReplaceAllString(src, "/")
}

// GalleryModal opens the photo overlay and reads full-resolution URLs from it.
type GalleryModal struct {
	sel     Selectors
	timeout time.Duration
	logger  *logger.Logger
}

// NewGalleryModal creates the gallery overlay strategy
func NewGalleryModal(sel Selectors, timeout time.Duration, log *logger.Logger) *GalleryModal {
	return &GalleryModal{sel: sel, timeout: timeout, logger: log.ForComponent("gallery")}
}

// Discover returns an empty list when the page has no gallery trigger.
func (g *GalleryModal) Discover(ctx context.Context, page Page, doc *goquery.Document) []string {
	log := g.logger.WithField("url", page.URL())

	if doc.Find(g.sel.GalleryTrigger).Length() == 0 {
		log.Debug().Msg("No gallery trigger")
		return nil
	}
	if err := page.Click(ctx, g.sel.GalleryTrigger); err != nil {
		log.Warn().Err(err).Msg("Failed to open gallery")
		return nil
	}
	defer g.close(ctx, page, log)

	if err := page.WaitVisible(ctx, g.sel.GalleryOverlay, g.timeout); err != nil {
		log.Warn().Err(err).Msg("Gallery overlay did not render")
		return nil
	}

	overlay, err := Snapshot(ctx, page)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read gallery overlay")
		return nil
	}

	var images []string
	overlay.Find(g.sel.GalleryImage).Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" {
			src, _ = img.Attr("data-src")
		}
		if src == "" || strings.Contains(src, g.sel.PlaceholderMarker) {
			return
		}
		images = append(images, resolveImage(page.URL(), FullResolution(src)))
	})
	return dedupe(images)
}

func (g *GalleryModal) close(ctx context.Context, page Page, log *logger.Logger) {
	if ok, _ := page.Exists(ctx, g.sel.GalleryClose); !ok {
		return
	}
	if err := page.Click(ctx, g.sel.GalleryClose); err != nil {
		log.Debug().Err(err).Msg("Failed to close gallery")
	}
}
