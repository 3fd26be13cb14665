package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCaptionMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCaptionMetrics(reg)

	m.ObserveFrame("es")
	m.ObserveFrame("es")
	m.ObserveDropped("malformed")
	m.ObserveEvicted(3)
	m.ObserveEvicted(0)
	m.ObserveConnection("socket", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesTotal.WithLabelValues("es")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedTotal.WithLabelValues("malformed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.evictedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsTotal.WithLabelValues("socket", "ok")))
}

func TestSchedulingMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveBooking("created")
	m.ObserveCancellation("rejected")
	m.ObserveSlotsGenerated(8)
	m.ObserveRemoteCall("create_appointment", 0.2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancellationsTotal.WithLabelValues("rejected")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.slotsGenerated))
	assert.Equal(t, 1, testutil.CollectAndCount(m.remoteLatency))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var c *CaptionMetrics
	c.ObserveFrame("en")
	c.ObserveDropped("malformed")
	c.ObserveEvicted(1)
	c.ObserveConnection("push", "error")

	var s *SchedulingMetrics
	s.ObserveBooking("created")
	s.ObserveCancellation("ok")
	s.ObserveSlotsGenerated(1)
	s.ObserveRemoteCall("x", 1)
}
