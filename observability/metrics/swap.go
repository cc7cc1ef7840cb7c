package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"otcswap/native/swap"
)

type SwapMetrics struct {
	offersCreated   prometheus.Counter
	takersBound     prometheus.Counter
	matchOutcomes   *prometheus.CounterVec
	offersFulfilled prometheus.Counter
	matchesAborted  prometheus.Counter
}

var (
	swapOnce     sync.Once
	swapRegistry *SwapMetrics
)

func Swap() *SwapMetrics {
	swapOnce.Do(func() {
		swapRegistry = &SwapMetrics{
			offersCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "swap_offers_created_total",
				Help: "Count of offers created.",
			}),
			takersBound: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "swap_takers_bound_total",
				Help: "Count of takers bound to offers with a custody sub-call dispatched.",
			}),
			matchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "swap_match_outcomes_total",
				Help: "Resolutions of custody sub-calls by outcome.",
			}, []string{"outcome"}),
			offersFulfilled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "swap_offers_fulfilled_total",
				Help: "Count of atomically settled swaps.",
			}),
			matchesAborted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "swap_matches_aborted_total",
				Help: "Count of stuck matches aborted with escrowed funds refunded.",
			}),
		}
		prometheus.MustRegister(
			swapRegistry.offersCreated,
			swapRegistry.takersBound,
			swapRegistry.matchOutcomes,
			swapRegistry.offersFulfilled,
			swapRegistry.matchesAborted,
		)
	})
	return swapRegistry
}

// ObserveEvent maps an emitted lifecycle event to its counter.
func (m *SwapMetrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	switch eventType {
	case swap.EventTypeOfferCreated:
		m.offersCreated.Inc()
	case swap.EventTypeTakerBound:
		m.takersBound.Inc()
	case swap.EventTypeMatchSucceeded:
		m.matchOutcomes.WithLabelValues("succeeded").Inc()
	case swap.EventTypeMatchFailed:
		m.matchOutcomes.WithLabelValues("failed").Inc()
	case swap.EventTypeOfferFulfilled:
		m.offersFulfilled.Inc()
	case swap.EventTypeMatchAborted:
		m.matchesAborted.Inc()
	}
}
