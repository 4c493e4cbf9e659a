package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics agrupa os coletores de domínio. Um *Metrics nil é válido e não registra nada.
type Metrics struct {
	Spins               *prometheus.CounterVec // result: win|loss|jackpot
	DoubleUps           *prometheus.CounterVec // result: win|loss|collected
	Withdrawals         *prometheus.CounterVec // outcome: accepted|rejected|compensated
	Settlements         *prometheus.CounterVec // status: settled|failed|skipped
	ReplayRejections    *prometheus.CounterVec // reason: stale|reused|store_error
	RateLimitRejections *prometheus.CounterVec // endpoint
	Compensations       prometheus.Counter
	WageredTotal        prometheus.Counter
	PaidOutTotal        prometheus.Counter
	SettlementDuration  prometheus.Histogram
}

// New cria e registra os coletores em reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Spins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slots_spins_total",
			Help: "Spins resolved, by result.",
		}, []string{"result"}),
		DoubleUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slots_double_ups_total",
			Help: "Double-up offers resolved, by result.",
		}, []string{"result"}),
		Withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slots_withdrawal_requests_total",
			Help: "Withdrawal requests, by outcome.",
		}, []string{"outcome"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slots_settlements_total",
			Help: "Settlement attempts, by status.",
		}, []string{"status"}),
		ReplayRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slots_replay_rejections_total",
			Help: "Requests rejected by the replay guard, by reason.",
		}, []string{"reason"}),
		RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slots_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter, by endpoint.",
		}, []string{"endpoint"}),
		Compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slots_ledger_compensations_total",
			Help: "Debits re-credited after a failed withdrawal enqueue.",
		}),
		WageredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slots_wagered_credits_total",
			Help: "Sum of accepted bet amounts.",
		}),
		PaidOutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slots_paid_out_credits_total",
			Help: "Sum of spin winnings credited.",
		}),
		SettlementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slots_settlement_duration_seconds",
			Help:    "Latency of a single on-chain submission.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Spins, m.DoubleUps, m.Withdrawals, m.Settlements,
			m.ReplayRejections, m.RateLimitRejections, m.Compensations,
			m.WageredTotal, m.PaidOutTotal, m.SettlementDuration,
		)
	}
	return m
}

func (m *Metrics) Spin(result string, bet, win float64) {
	if m == nil {
		return
	}
	m.Spins.WithLabelValues(result).Inc()
	m.WageredTotal.Add(bet)
	if win > 0 {
		m.PaidOutTotal.Add(win)
	}
}

func (m *Metrics) DoubleUp(result string) {
	if m == nil {
		return
	}
	m.DoubleUps.WithLabelValues(result).Inc()
}

func (m *Metrics) Withdrawal(outcome string) {
	if m == nil {
		return
	}
	m.Withdrawals.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Compensated() {
	if m == nil {
		return
	}
	m.Compensations.Inc()
	m.Withdrawals.WithLabelValues("compensated").Inc()
}

func (m *Metrics) Settlement(status string, seconds float64) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(status).Inc()
	if seconds > 0 {
		m.SettlementDuration.Observe(seconds)
	}
}

func (m *Metrics) ReplayRejected(reason string) {
	if m == nil {
		return
	}
	m.ReplayRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) RateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.RateLimitRejections.WithLabelValues(endpoint).Inc()
}
