// Package promhooks counts cache hook events with Prometheus counters.
package promhooks

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/unkn0wn-root/modelcache"
)

type Options struct {
	// Namespace prefixes every metric name. Defaults to "modelcache".
	Namespace string
	// ConstLabels are attached to every series, e.g. {"cache": "users"}.
	ConstLabels prometheus.Labels
}

type Hooks struct {
	lookups     *prometheus.CounterVec
	dangling    prometheus.Counter
	setFailures prometheus.Counter
	selfHeals   *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	tombstones  prometheus.Counter
}

var _ modelcache.Hooks = (*Hooks)(nil)

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer, opts Options) (*Hooks, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = "modelcache"
	}
	co := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: ns, Name: name, Help: help, ConstLabels: opts.ConstLabels}
	}

	h := &Hooks{
		lookups:     prometheus.NewCounterVec(co("lookups_total", "Record lookups by type and outcome."), []string{"type", "status"}),
		dangling:    prometheus.NewCounter(co("dangling_references_total", "References whose record entry was gone.")),
		setFailures: prometheus.NewCounter(co("set_resolution_failures_total", "Named sets with a missing member.")),
		selfHeals:   prometheus.NewCounterVec(co("self_heals_total", "Unreadable entries deleted on read."), []string{"reason"}),
		rejected:    prometheus.NewCounterVec(co("provider_set_rejected_total", "Writes refused by the provider."), []string{"many"}),
		tombstones:  prometheus.NewCounter(co("tombstones_total", "Tombstones written.")),
	}
	for _, c := range []prometheus.Collector{h.lookups, h.dangling, h.setFailures, h.selfHeals, h.rejected, h.tombstones} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// MustNew is New that panics on registration errors.
func MustNew(reg prometheus.Registerer, opts Options) *Hooks {
	h, err := New(reg, opts)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *Hooks) Lookup(typ string, st modelcache.Status) {
	h.lookups.WithLabelValues(typ, st.String()).Inc()
}

func (h *Hooks) DanglingReference(string, string)   { h.dangling.Inc() }
func (h *Hooks) SetResolutionFailed(string, string) { h.setFailures.Inc() }
func (h *Hooks) CorruptEntry(_ string, reason string) {
	h.selfHeals.WithLabelValues(reason).Inc()
}
func (h *Hooks) ProviderSetRejected(_ string, many bool) {
	h.rejected.WithLabelValues(strconv.FormatBool(many)).Inc()
}
func (h *Hooks) Tombstoned(string, time.Duration) { h.tombstones.Inc() }
