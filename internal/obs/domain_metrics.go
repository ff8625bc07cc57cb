package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartCommandsTotal counts cart commands applied by the store.
	CartCommandsTotal *prometheus.CounterVec
	// CartMirrorFailuresTotal counts durable mirror operations that failed.
	CartMirrorFailuresTotal *prometheus.CounterVec
	// CartMirrorInvalidTotal counts saved records rejected by structural validation.
	CartMirrorInvalidTotal prometheus.Counter
	// CartItemCount reports the current number of units in the cart.
	CartItemCount prometheus.Gauge
	// AuthAttemptsTotal counts register/login outcomes.
	AuthAttemptsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartCommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_commands_total",
			Help:      "Count of cart commands applied, by command.",
		}, []string{"command"})
		CartMirrorFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mirror_failures_total",
			Help:      "Count of failed durable cart mirror operations.",
		}, []string{"op"})
		CartMirrorInvalidTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mirror_invalid_records_total",
			Help:      "Number of saved cart records discarded as structurally invalid.",
		})
		CartItemCount = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cart_item_count",
			Help:      "Units currently held in the cart.",
		})
		AuthAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Count of register and login attempts by outcome.",
		}, []string{"action", "result"})

		mustRegisterCollector(reg, CartCommandsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartCommandsTotal = v
			}
		})
		mustRegisterCollector(reg, CartMirrorFailuresTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMirrorFailuresTotal = v
			}
		})
		mustRegisterCollector(reg, CartMirrorInvalidTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CartMirrorInvalidTotal = v
			}
		})
		mustRegisterCollector(reg, CartItemCount, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				CartItemCount = v
			}
		})
		mustRegisterCollector(reg, AuthAttemptsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				AuthAttemptsTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// ObserveCartCommand records an applied cart command and the resulting unit count.
func ObserveCartCommand(command string, itemCount int) {
	if CartCommandsTotal != nil {
		CartCommandsTotal.WithLabelValues(command).Inc()
	}
	if CartItemCount != nil {
		CartItemCount.Set(float64(itemCount))
	}
}

// ObserveCartMirrorFailure records a failed mirror operation ("load", "save", "delete").
func ObserveCartMirrorFailure(op string) {
	if CartMirrorFailuresTotal != nil {
		CartMirrorFailuresTotal.WithLabelValues(op).Inc()
	}
}

// ObserveCartMirrorInvalid records a discarded saved record.
func ObserveCartMirrorInvalid() {
	if CartMirrorInvalidTotal != nil {
		CartMirrorInvalidTotal.Inc()
	}
}

// ObserveAuthAttempt records the outcome of a register or login call.
func ObserveAuthAttempt(action, result string) {
	if AuthAttemptsTotal != nil {
		AuthAttemptsTotal.WithLabelValues(action, result).Inc()
	}
}
