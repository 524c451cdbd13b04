package crawler

import (
	"context"
	"fmt"
	"io"
	"strings"

	apperrors "sjsage522/estateworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// createDocument creates a goquery document from a reader
func createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, apperrors.NewExtraction("crawler", "failed to parse HTML", err)
	}
	return doc, nil
}

// Snapshot returns the page's current DOM as a goquery document
func Snapshot(ctx context.Context, page Page) (*goquery.Document, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return createDocument(strings.NewReader(html))
}

// scriptJSON returns the text of the JSON script tag with the given id
func scriptJSON(doc *goquery.Document, id string) (string, bool) {
	sel := doc.Find(fmt.Sprintf(`script[type="application/json"]#%s`, id))
	if sel.Length() == 0 {
		return "", false
	}
	text := strings.TrimSpace(sel.First().Text())
	return text, text != ""
}

// cleanText collapses whitespace the way rendered text reads
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
