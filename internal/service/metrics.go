package service

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch attempt results.
const (
	resultDispatched   = "dispatched"
	resultNoPallet     = "no_pallet"
	resultIdle         = "idle"
	resultGatewayError = "gateway_error"
	resultNoOrderID    = "no_order_id"
	resultConflict     = "conflict"
)

// Metrics records engine activity in Prometheus collectors.  A nil
// *Metrics records nothing.
type Metrics struct {
	dispatch  *prometheus.CounterVec
	callbacks *prometheus.CounterVec
	pallets   *prometheus.CounterVec
	gateway   *prometheus.HistogramVec
}

// NewMetrics registers the hall collectors on reg.  If reg is nil, the
// default registerer is used.  Collectors that are already registered are
// reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hall_dispatch_attempts_total",
			Help: "Dispatch attempts by result",
		}, []string{"result"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hall_callbacks_total",
			Help: "Fleet callbacks received",
		}, []string{"action", "status", "matched"}),
		pallets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hall_pallet_mutations_total",
			Help: "Operator pallet mutations",
		}, []string{"op"}),
		gateway: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hall_gateway_latency_seconds",
			Help:    "Latency of fleet gateway calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	var err error
	if m.dispatch, err = registerCounter(reg, m.dispatch); err != nil {
		return nil, err
	}
	if m.callbacks, err = registerCounter(reg, m.callbacks); err != nil {
		return nil, err
	}
	if m.pallets, err = registerCounter(reg, m.pallets); err != nil {
		return nil, err
	}
	if err := reg.Register(m.gateway); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		m.gateway = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return m, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) dispatchAttempt(result string) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(result).Inc()
}

func (m *Metrics) callback(action, status string, matched bool) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(action, status, strconv.FormatBool(matched)).Inc()
}

func (m *Metrics) palletMutation(op string) {
	if m == nil {
		return
	}
	m.pallets.WithLabelValues(op).Inc()
}

func (m *Metrics) gatewayLatency(op string, since time.Time) {
	if m == nil {
		return
	}
	m.gateway.WithLabelValues(op).Observe(time.Since(since).Seconds())
}
