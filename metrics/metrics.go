// Package metrics provides Prometheus metrics for the position sync engine
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DealsApplied 成功落账的成交回报数，按事件类型区分。
	DealsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ps_deals_applied_total",
		Help: "Deal events applied to the local book",
	}, []string{"kind"})

	// DealsRejected 因缺字段被丢弃的回报数。
	DealsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ps_deals_rejected_total",
		Help: "Malformed deal events dropped",
	})

	// AuthoritativeQueries smart sync 触发的权威查询次数。
	AuthoritativeQueries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ps_authoritative_queries_total",
		Help: "Synchronous authoritative position queries issued",
	})

	// LocalSnapshots 直接返回本地快照的读请求数。
	LocalSnapshots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ps_local_snapshots_total",
		Help: "Reads served from the local book without an authoritative call",
	})

	// ReconcileRuns 后台对账执行次数。
	ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ps_reconcile_runs_total",
		Help: "Background reconciliations executed",
	})

	// ReconcileCorrections 对账修正数，按差异类别区分。
	ReconcileCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ps_reconcile_corrections_total",
		Help: "Book corrections applied during reconciliation",
	}, []string{"kind"})
)

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
