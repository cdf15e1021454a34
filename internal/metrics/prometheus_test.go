package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveExtraction(t *testing.T) {
	c := NewCollector("test")

	c.ObserveExtraction("success", 200*time.Millisecond)
	c.ObserveExtraction("success", 300*time.Millisecond)
	c.ObserveExtraction("failed", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.extractions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.extractions.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.extractions.WithLabelValues("superseded")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.extractionLatency))
}

func TestCollector_RecordExportAndPublish(t *testing.T) {
	c := NewCollector("test")

	c.RecordExport("csv", nil)
	c.RecordExport("csv", errors.New("nothing to export"))
	c.RecordExport("notion", nil)
	c.RecordPublish(3, 2, 1)
	c.RecordPublish(1, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.exports.WithLabelValues("csv", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.exports.WithLabelValues("csv", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.exports.WithLabelValues("notion", "success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.publishedRecords.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.publishedRecords.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.publishedRecords.WithLabelValues("failed")))
}

func TestCollector_HTTPAndDrafts(t *testing.T) {
	c := NewCollector("test")

	c.RecordHTTPRequest("GET", "/api/dashboard", 200, 10*time.Millisecond)
	c.RecordHTTPRequest("GET", "/api/dashboard", 502, 10*time.Millisecond)
	c.SetActiveDrafts(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/api/dashboard", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/api/dashboard", "502")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.activeDrafts))
}

func TestRegister_Twice(t *testing.T) {
	c := NewCollector("test")
	registry := prometheus.NewRegistry()

	require.NoError(t, c.Register(registry))
	assert.Error(t, c.Register(registry))
}

func TestHandler(t *testing.T) {
	c := NewCollector("spendquest")
	registry, err := NewRegistry(c)
	require.NoError(t, err)

	c.ObserveExtraction("rejected", 50*time.Millisecond)

	server := httptest.NewServer(Handler(registry))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `spendquest_receipt_extractions_total{outcome="rejected"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
