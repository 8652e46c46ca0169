package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	assert.Equal(t, float64(-1), testutil.ToFloat64(r.lastCompleted))

	r.Dispatch("tail", "ok", 0.2)
	r.Dispatch("tail", "expired", 0.1)
	r.Dispatch("tail", "ok", 0.3)
	r.Completed(14)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.dispatches.WithLabelValues("tail", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.dispatches.WithLabelValues("tail", "expired")))
	assert.Equal(t, float64(14), testutil.ToFloat64(r.lastCompleted))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `relay_dispatch_total{outcome="ok",role="tail"} 2`)
	assert.Contains(t, string(body), `relay_last_completed_hour 14`)
}
