package observers

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/signbridge/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusObserverCounts(t *testing.T) {
	o := NewPrometheusObserver()
	o.RecordEvent(metrics.NewEvent(metrics.EventFrameOut, "s", "video").With(metrics.TagKind, "image"))
	o.RecordEvent(metrics.NewEvent(metrics.EventFrameOut, "s", "video").With(metrics.TagKind, "image"))
	o.RecordEvent(metrics.NewEvent(metrics.EventFrameSkipped, "s", "video").With(metrics.TagReason, "not_open"))
	o.RecordEvent(metrics.NewEvent(metrics.EventInboundDropped, "s", "video"))
	o.RecordEvent(metrics.NewEvent(metrics.EventTransportError, "s", "video").With(metrics.TagReason, "transport_closed"))
	o.ObserveLatency("video", 300*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(o.framesSent.WithLabelValues("video", "image")))
	require.Equal(t, 1.0, testutil.ToFloat64(o.framesSkipped.WithLabelValues("video", "not_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(o.inboundDropped.WithLabelValues("video")))
	require.Equal(t, 1.0, testutil.ToFloat64(o.sessionErrors.WithLabelValues("video", "transport_closed")))
	require.Equal(t, 1, testutil.CollectAndCount(o.latency))
}

func TestExporterHandler(t *testing.T) {
	o := NewPrometheusObserver()
	o.RecordEvent(metrics.NewEvent(metrics.EventSessionStarted, "s", "audio"))
	srv := httptest.NewServer(NewExporter("", o.Registry()).Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(strings.Builder)
	_, _ = io.Copy(buf, resp.Body)
	require.Contains(t, buf.String(), "signbridge_sessions_active")

	health, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	require.Equal(t, 200, health.StatusCode)
}
