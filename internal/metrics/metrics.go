// Package metrics holds the Prometheus collectors of the booking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "parking"

// Booking groups the collectors the coordinator and sweeper update.
type Booking struct {
	// Requests counts RequestBooking outcomes by result ("pending", "rejected", "error").
	Requests *prometheus.CounterVec
	// Transitions counts booking state changes by source and target state.
	Transitions *prometheus.CounterVec
	// HeldSlots is the number of slots currently held by pending bookings.
	HeldSlots     prometheus.Gauge
	SweepDuration prometheus.Histogram
	SweepExpired  prometheus.Counter
}

// NewBooking creates the booking collectors and registers them on reg.
func NewBooking(reg prometheus.Registerer) (*Booking, error) {
	m := &Booking{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_requests_total",
			Help:      "Booking requests by outcome.",
		}, []string{"outcome"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking state transitions.",
		}, []string{"from", "to"}),
		HeldSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "held_slots",
			Help:      "Slots currently held by pending bookings.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiration sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		SweepExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_expired_total",
			Help:      "Pending bookings expired by the sweeper.",
		}),
	}

	for _, c := range []prometheus.Collector{m.Requests, m.Transitions, m.HeldSlots, m.SweepDuration, m.SweepExpired} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewNopBooking returns collectors registered on a throwaway registry, for
// tests and tools that do not expose /metrics.
func NewNopBooking() *Booking {
	m, err := NewBooking(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}
