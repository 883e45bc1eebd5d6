package main

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/larkmail/lark/server"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServerMetrics returns the counter set of the authority.
// With an empty prometheus address all counters discard
// their values.
func NewServerMetrics(prometheusAddr string) server.Metrics {

	if prometheusAddr == "" {
		return server.Metrics{
			Logins:   discard.NewCounter(),
			Logouts:  discard.NewCounter(),
			Commands: discard.NewCounter(),
		}
	}

	return server.Metrics{
		Logins: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "lark",
			Subsystem: "server",
			Name:      "logins_total",
			Help:      "Number of logins",
		}, nil),
		Logouts: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "lark",
			Subsystem: "server",
			Name:      "logouts_total",
			Help:      "Number of logouts",
		}, nil),
		Commands: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "lark",
			Subsystem: "server",
			Name:      "commands_total",
			Help:      "Number of handled IMAP commands",
		}, []string{"command"}),
	}
}

func runPromHTTP(logger log.Logger, addr string) {

	if addr == "" {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return
	}

	http.Handle("/metrics", promhttp.Handler())

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
	}
}
