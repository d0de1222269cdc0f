// Package metrics exposes Prometheus counters for access decisions and the
// sign-in lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultTimeout = "timeout"

	StageBegin    = "begin"
	StageComplete = "complete"
)

// Recorder is the subset used by the gate and the session service.
type Recorder interface {
	RecordGateDecision(outcome string)
	RecordSignIn(stage, result string)
	RecordSignOut(result string)
}

type Collector struct {
	gateDecisions *prometheus.CounterVec
	signIns       *prometheus.CounterVec
	signOuts      *prometheus.CounterVec
}

// NewCollector creates the collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mokabu_gate_decisions_total",
			Help: "Access gate decisions by outcome",
		}, []string{"outcome"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mokabu_signin_total",
			Help: "Sign-in attempts by stage and result",
		}, []string{"stage", "result"}),
		signOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mokabu_signout_total",
			Help: "Sign-out attempts by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.gateDecisions,
		c.signIns,
		c.signOuts,
	)

	return c
}

func (c *Collector) RecordGateDecision(outcome string) {
	c.gateDecisions.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSignIn(stage, result string) {
	c.signIns.WithLabelValues(stage, result).Inc()
}

func (c *Collector) RecordSignOut(result string) {
	c.signOuts.WithLabelValues(result).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordGateDecision(string)   {}
func (Nop) RecordSignIn(string, string) {}
func (Nop) RecordSignOut(string)        {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
