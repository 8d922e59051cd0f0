package main

import (
	"fmt"
	"net/http"

	model "marathon-sim/driftsim/pkg/datamodel"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics the host exposes while a
// simulation runs.  The routing counters are cumulative in RoutingStats, so
// Observe feeds the deltas since the previous tick.
type Collector struct {
	gatherer prometheus.Gatherer

	Transmitted prometheus.Counter
	Received    prometheus.Counter
	Delivered   prometheus.Gauge

	Agents       prometheus.Gauge
	LiveMessages prometheus.Gauge

	prev model.RoutingStats
}

// NewCollector registers the simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	transmitted, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "driftsim_messages_transmitted_total",
		Help: "Total number of message transmissions across all encounters.",
	}), "driftsim_messages_transmitted_total")
	if err != nil {
		return nil, err
	}
	received, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "driftsim_messages_received_total",
		Help: "Total number of message receptions across all encounters.",
	}), "driftsim_messages_received_total")
	if err != nil {
		return nil, err
	}
	delivered, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "driftsim_agents_delivered",
		Help: "Number of distinct agents that have ever held the seed message.",
	}), "driftsim_agents_delivered")
	if err != nil {
		return nil, err
	}
	agents, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "driftsim_agents",
		Help: "Current number of agents in the simulation.",
	}), "driftsim_agents")
	if err != nil {
		return nil, err
	}
	liveMessages, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "driftsim_live_messages",
		Help: "Current number of live messages in the ledger.",
	}), "driftsim_live_messages")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:     gatherer,
		Transmitted:  transmitted,
		Received:     received,
		Delivered:    delivered,
		Agents:       agents,
		LiveMessages: liveMessages,
	}, nil
}

// Observe feeds the current snapshot into the metrics.
func (c *Collector) Observe(stats model.RoutingStats, agents, liveMessages int) {
	if c == nil {
		return
	}
	c.Transmitted.Add(float64(stats.Transmitted - c.prev.Transmitted))
	c.Received.Add(float64(stats.Received - c.prev.Received))
	c.Delivered.Set(float64(stats.Delivered))
	c.Agents.Set(float64(agents))
	c.LiveMessages.Set(float64(liveMessages))
	c.prev = stats
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
