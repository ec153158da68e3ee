package application

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"auctionhub/internal/service/auction/domain"
)

// Metrics 汇总拍卖引擎暴露给 /metrics 的指标。nil *Metrics 可以安全调用。
type Metrics struct {
	bids           *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	persistFails   prometheus.Counter
	resolveSeconds prometheus.Histogram
	finalized      *prometheus.CounterVec
	notifyFails    prometheus.Counter
}

// NewMetrics 在 reg 上注册指标；生产环境传 prometheus.DefaultRegisterer，测试传独立 registry
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		bids: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "bids_resolved_total",
			Help:      "Bids that passed validation, by resolution case and outcome status.",
		}, []string{"case", "status"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "bids_rejected_total",
			Help:      "Bids rejected during validation, by reason.",
		}, []string{"reason"}),
		persistFails: f.NewCounter(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "persistence_failures_total",
			Help:      "Bids that failed on storage or locking.",
		}),
		resolveSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "auction",
			Name:      "place_bid_duration_seconds",
			Help:      "Time spent in PlaceBid including the product lock wait.",
			Buckets:   prometheus.DefBuckets,
		}),
		finalized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "finalized_total",
			Help:      "Auctions moved to a terminal state, by outcome reason.",
		}, []string{"reason"}),
		notifyFails: f.NewCounter(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "winner_notification_failures_total",
			Help:      "Winner notifications that could not be handed to the sink.",
		}),
	}
}

func (m *Metrics) observeResolved(c domain.ResolutionCase, status domain.OutcomeStatus, started time.Time) {
	if m == nil {
		return
	}
	m.bids.WithLabelValues(string(c), string(status)).Inc()
	m.resolveSeconds.Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeRejected(reason domain.RejectionReason) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) observePersistenceFailure() {
	if m == nil {
		return
	}
	m.persistFails.Inc()
}

func (m *Metrics) observeFinalized(reason domain.OutcomeReason) {
	if m == nil {
		return
	}
	m.finalized.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) observeNotifyFailure() {
	if m == nil {
		return
	}
	m.notifyFails.Inc()
}
