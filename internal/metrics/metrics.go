package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "telehealth"

// CaptionMetrics counts what happens on live caption streams.
type CaptionMetrics struct {
	framesTotal      *prometheus.CounterVec
	droppedTotal     *prometheus.CounterVec
	evictedTotal     prometheus.Counter
	connectionsTotal *prometheus.CounterVec
}

func NewCaptionMetrics(reg prometheus.Registerer) *CaptionMetrics {
	m := &CaptionMetrics{
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "captions",
			Name:      "frames_total",
			Help:      "Caption chunks appended to a buffer",
		}, []string{"lang"}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "captions",
			Name:      "dropped_frames_total",
			Help:      "Caption frames discarded before reaching a buffer",
		}, []string{"reason"}),
		evictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "captions",
			Name:      "evicted_total",
			Help:      "Caption chunks evicted by the buffer bound",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "captions",
			Name:      "connections_total",
			Help:      "Caption stream connection attempts",
		}, []string{"transport", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.framesTotal, m.droppedTotal, m.evictedTotal, m.connectionsTotal)
	return m
}

func (m *CaptionMetrics) ObserveFrame(lang string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(lang).Inc()
}

func (m *CaptionMetrics) ObserveDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(reason).Inc()
}

func (m *CaptionMetrics) ObserveEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictedTotal.Add(float64(n))
}

func (m *CaptionMetrics) ObserveConnection(transport, outcome string) {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues(transport, outcome).Inc()
}

// SchedulingMetrics covers booking, cancellation and slot generation.
type SchedulingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	slotsGenerated     prometheus.Counter
	remoteLatency      *prometheus.HistogramVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome",
		}, []string{"outcome"}),
		slotsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "slots_generated_total",
			Help:      "Slot specs submitted by the generator",
		}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "remote_call_seconds",
			Help:      "Latency of calls to the scheduling backend",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancellationsTotal, m.slotsGenerated, m.remoteLatency)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveSlotsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsGenerated.Add(float64(n))
}

func (m *SchedulingMetrics) ObserveRemoteCall(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.remoteLatency.WithLabelValues(operation).Observe(seconds)
}
