// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics wraps the handful of prometheus collectors the
// engine exposes: RBC phase transitions, ABA round advances, decided
// epochs, and queue depths (see DESIGN.md, grounded on the teacher's
// metrics/metrics.go registration pattern).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is optional: components given a nil *Metrics substitute
// NewNoOp() at construction, so they never need a nil check before
// recording.
type Metrics struct {
	RBCPhaseTransitions *prometheus.CounterVec
	ABARoundsAdvanced   prometheus.Counter
	EpochsDecided       prometheus.Counter
	QueueDepth          *prometheus.GaugeVec
}

// New registers the engine's collectors against reg and returns the
// handle used to record them.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RBCPhaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dumbo_rbc_phase_transitions_total",
			Help: "Number of RBC instance phase transitions, by resulting phase.",
		}, []string{"phase"}),
		ABARoundsAdvanced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dumbo_aba_rounds_advanced_total",
			Help: "Number of ABA round advances across all instances.",
		}),
		EpochsDecided: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dumbo_epochs_decided_total",
			Help: "Number of epochs that reached a final decision.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dumbo_pending_queue_depth",
			Help: "Current depth of a pending-message queue, by protocol and bucket.",
		}, []string{"protocol", "bucket"}),
	}

	for _, c := range []prometheus.Collector{m.RBCPhaseTransitions, m.ABARoundsAdvanced, m.EpochsDecided, m.QueueDepth} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// NewNoOp returns a Metrics backed by an unregistered local registry,
// safe to use when the caller has no prometheus.Registerer (e.g. in
// tests).
func NewNoOp() *Metrics {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}
