package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "sjsage522/estateworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptJSON(t *testing.T) {
	doc, err := createDocument(strings.NewReader(`<html><head>
<script type="application/json" id="properties-hydration"> {"id":"1"} </script>
<script type="application/json" id="gallery-hydration">   </script>
<script id="features-hydration">{"ignored":true}</script>
</head></html>`))
	require.NoError(t, err)

	text, ok := scriptJSON(doc, "properties-hydration")
	assert.True(t, ok)
	assert.Equal(t, `{"id":"1"}`, text)

	_, ok = scriptJSON(doc, "gallery-hydration")
	assert.False(t, ok, "blank payload")

	_, ok = scriptJSON(doc, "features-hydration")
	assert.False(t, ok, "wrong script type")

	_, ok = scriptJSON(doc, "agency-hydration")
	assert.False(t, ok)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", cleanText("  a\n\tb   c "))
	assert.Equal(t, "", cleanText(" \n "))
}

func TestFlexString(t *testing.T) {
	var p PropertyPayload
	require.NoError(t, decodePayload(`{"id":42,"title":" Villa ","type":{"x":1},"shortTitle":null}`, &p))
	assert.Equal(t, "42", p.ID.String())
	assert.Equal(t, "Villa", p.Title.String())
	assert.Equal(t, "", p.Type.String())
	assert.Equal(t, "", p.ShortTitle.String())
}

func TestIsEmptyObject(t *testing.T) {
	assert.True(t, isEmptyObject(`{}`))
	assert.True(t, isEmptyObject(`[]`))
	assert.True(t, isEmptyObject(`{broken`))
	assert.False(t, isEmptyObject(`{"id":1}`))
}

func TestHTTPPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/listing":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<html><body><div class="lx-property__mainContent">ok</div></body></html>`))
		case "/image.jpg":
			w.Write([]byte{0xff, 0xd8, 0xff})
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	page, err := NewHTTPBrowser(server.Client()).NewPage(ctx)
	require.NoError(t, err)
	defer page.Close()

	_, err = page.HTML(ctx)
	assert.Error(t, err, "nothing loaded yet")

	require.NoError(t, page.Navigate(ctx, server.URL+"/listing"))
	assert.Equal(t, server.URL+"/listing", page.URL())

	html, err := page.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "lx-property__mainContent")

	assert.NoError(t, page.WaitVisible(ctx, ".lx-property__mainContent", time.Second))
	assert.Error(t, page.WaitVisible(ctx, ".missing", time.Second))

	assert.True(t, errors.Is(page.Click(ctx, "button"), ErrUnsupported))
	var out any
	assert.True(t, errors.Is(page.Evaluate(ctx, "1+1", &out), ErrUnsupported))

	data, err := page.FetchResource(ctx, server.URL+"/image.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)

	err = page.Navigate(ctx, server.URL+"/limited")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRateLimit))
}
