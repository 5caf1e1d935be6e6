// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freefall",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Total RPC calls by outcome.",
		},
		[]string{"method", "protocol", "outcome"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "freefall",
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "RPC call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "protocol"},
	)
	errorReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freefall",
			Subsystem: "rpc",
			Name:      "reports_total",
			Help:      "Raised errors by kind and whether a report was sent.",
		},
		[]string{"kind", "reported"},
	)
)

// RegisterMetrics registers the collectors with the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(rpcCalls, rpcDuration, errorReports)
	})
}

// Register adds the collectors to reg. Use it instead of RegisterMetrics
// when the host owns its own registry.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{rpcCalls, rpcDuration, errorReports} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

// RecordCall counts one finished call. outcome is "ok", "empty" or an error kind.
func RecordCall(method, protocol, outcome string, duration time.Duration) {
	rpcCalls.WithLabelValues(method, protocol, outcome).Inc()
	rpcDuration.WithLabelValues(method, protocol).Observe(duration.Seconds())
}

// RecordReport counts one raised error.
func RecordReport(kind string, reported bool) {
	errorReports.WithLabelValues(kind, strconv.FormatBool(reported)).Inc()
}

// CallCount returns the current calls_total value for the label set.
func CallCount(method, protocol, outcome string) prometheus.Counter {
	return rpcCalls.WithLabelValues(method, protocol, outcome)
}

// ReportCount returns the current reports_total counter for the label set.
func ReportCount(kind string, reported bool) prometheus.Counter {
	return errorReports.WithLabelValues(kind, strconv.FormatBool(reported))
}
