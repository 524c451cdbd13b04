package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveMessage("inserted", time.Second)
	m.ObserveMessage("inserted", time.Second)
	m.ObserveMessage("failed", time.Second)
	m.ObserveImage("stored")
	m.ObserveURL("published")
	m.ObservePage()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Messages.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Images.WithLabelValues("stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Pages))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveURL("duplicate")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `estate_urls_total{result="duplicate"} 1`)
}
