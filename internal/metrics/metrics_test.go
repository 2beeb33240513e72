package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycleCounters(t *testing.T) {
	m := New()

	m.SessionStarted()
	require.Equal(t, float64(1), testutil.ToFloat64(m.SessionsActive))

	m.SessionEnded(OutcomeCompleted, 2*time.Second, 300, 4)
	require.Equal(t, float64(0), testutil.ToFloat64(m.SessionsActive))
	require.Equal(t, float64(1), testutil.ToFloat64(m.SessionsTotal.WithLabelValues(OutcomeCompleted)))
	require.Equal(t, float64(300), testutil.ToFloat64(m.CapturedSamples))
	require.Equal(t, float64(4), testutil.ToFloat64(m.DroppedBlocks))
}

func TestRecordTranscriptionStatus(t *testing.T) {
	m := New()

	m.RecordTranscription("http", nil, time.Second)
	m.RecordTranscription("http", errors.New("model unavailable"), time.Second)
	m.RecordTranscription("http", errors.New("again"), time.Second)

	require.Equal(t, float64(1), testutil.ToFloat64(m.TranscriptionsTotal.WithLabelValues("http", "ok")))
	require.Equal(t, float64(2), testutil.ToFloat64(m.TranscriptionsTotal.WithLabelValues("http", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SessionStarted()
	m.SessionEnded(OutcomeFailed, time.Second, 0, 0)
	m.RecordTranscription("x", nil, time.Second)
	m.SetLevel(10)
	require.Nil(t, m.Registry())
}

func TestHandlerServesExposition(t *testing.T) {
	m := New()
	m.SetLevel(42)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "dictate_input_level 42")
}
