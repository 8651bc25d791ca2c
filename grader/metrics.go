package grader

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "contestd"

var (
	queueLengthDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "grader", "queue_length"),
		"Number of submissions waiting for a judgehost.", nil, nil)
	activeLeasesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "grader", "active_leases"),
		"Number of submissions currently leased to judgehosts.", nil, nil)
	nodesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "grader", "nodes"),
		"Number of known judgehosts.", nil, nil)
	cancelledDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "grader", "cancelled_total"),
		"Submissions resolved without a verdict.", nil, nil)
)

type collector struct {
	svc Service
}

// NewCollector exposes grader statistics as Prometheus metrics.
func NewCollector(svc Service) prometheus.Collector {
	return &collector{svc: svc}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- queueLengthDesc
	ch <- activeLeasesDesc
	ch <- nodesDesc
	ch <- cancelledDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	st := c.svc.Stats(context.Background())
	ch <- prometheus.MustNewConstMetric(queueLengthDesc, prometheus.GaugeValue, float64(st.Queued))
	ch <- prometheus.MustNewConstMetric(activeLeasesDesc, prometheus.GaugeValue, float64(st.Leased))
	ch <- prometheus.MustNewConstMetric(nodesDesc, prometheus.GaugeValue, float64(len(st.Nodes)))
	ch <- prometheus.MustNewConstMetric(cancelledDesc, prometheus.CounterValue, float64(st.Cancelled))
}
