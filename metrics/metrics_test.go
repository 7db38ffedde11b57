package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(registrations.WithLabelValues("confirmed"))
	RecordRegistration("confirmed")
	RecordRegistration("confirmed")
	assert.Equal(t, before+2, testutil.ToFloat64(registrations.WithLabelValues("confirmed")))

	before = testutil.ToFloat64(connects.WithLabelValues("failed"))
	RecordConnect("failed")
	assert.Equal(t, before+1, testutil.ToFloat64(connects.WithLabelValues("failed")))

	before = testutil.ToFloat64(fetches.WithLabelValues("ok"))
	RecordFetch("ok")
	assert.Equal(t, before+1, testutil.ToFloat64(fetches.WithLabelValues("ok")))

	RecordConfirmation("confirmed", 3*time.Second)
	RecordHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
}

func TestMetricsServer(t *testing.T) {
	srv, err := New("travelid-test", "127.0.0.1:0")
	require.NoError(t, err)

	// A second server must not fail on duplicate registration.
	_, err = New("travelid-test", "127.0.0.1:0")
	require.NoError(t, err)

	RecordConnect("connected")

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "travelid_session_connects_total")
	assert.Contains(t, string(body), `service="travelid-test"`)
}
