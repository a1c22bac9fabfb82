// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package vinyl

import (
	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics observes a WriteIterator's run without influencing its control
// flow: counts and size/chain-length distributions a surrounding compaction
// pipeline collects, but that the merge core itself never branches on.
// Prometheus counters are paired with HDR histograms for the
// percentile-sensitive distributions, mirroring how a latency- or
// size-sensitive component typically exposes both a running total and a
// distribution.
type Metrics struct {
	YieldedAboveHorizon prometheus.Counter
	YieldedBelowHorizon prometheus.Counter
	UpsertsFolded       prometheus.Counter
	TombstonesElided    prometheus.Counter
	IndexUpdatesElided  prometheus.Counter

	SourcesAdded     prometheus.Counter
	SourcesDiscarded prometheus.Counter
	SourcesExhausted prometheus.Counter
	SourcesErrored   prometheus.Counter

	// squashChainLen records, per key squashed at or below the horizon, how
	// many statements squashCurrentKey folded together (1 when no folding
	// occurred). It is recorded before last-level tombstone elision, so
	// elided keys are counted too.
	squashChainLen *hdrhistogram.Histogram
	// statementSize records the payload size, in bytes, of every yielded
	// statement.
	statementSize *hdrhistogram.Histogram
}

// NewMetrics returns a Metrics that registers its prometheus collectors on
// reg. If reg is nil, a private registry is used instead, so a caller can
// opt into a shared registry without this package forcing a global one.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		YieldedAboveHorizon: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vinyl_write_iterator_yielded_above_horizon_total",
			Help: "Statements yielded verbatim because their version is above the horizon.",
		}),
		YieldedBelowHorizon: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vinyl_write_iterator_yielded_below_horizon_total",
			Help: "Statements yielded after squash/prune because their version is at or below the horizon.",
		}),
		UpsertsFolded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vinyl_write_iterator_upserts_folded_total",
			Help: "UPSERT statements folded by the UpsertApplier.",
		}),
		TombstonesElided: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vinyl_write_iterator_tombstones_elided_total",
			Help: "DELETE statements elided at the last level.",
		}),
		IndexUpdatesElided: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vinyl_write_iterator_index_updates_elided_total",
			Help: "Secondary-index statements elided by the column-mask predicate.",
		}),
		SourcesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vinyl_write_iterator_sources_added_total",
			Help: "Sources successfully pushed onto the merge heap.",
		}),
		SourcesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vinyl_write_iterator_sources_discarded_total",
			Help: "Sources discarded because their stream was immediately empty.",
		}),
		SourcesExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vinyl_write_iterator_sources_exhausted_total",
			Help: "Sources removed from the heap after their stream exhausted.",
		}),
		SourcesErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vinyl_write_iterator_sources_errored_total",
			Help: "Sources that surfaced a stream error.",
		}),
		squashChainLen: hdrhistogram.New(1, 1<<20, 3),
		statementSize:  hdrhistogram.New(0, 1<<30, 3),
	}
	reg.MustRegister(
		m.YieldedAboveHorizon, m.YieldedBelowHorizon, m.UpsertsFolded,
		m.TombstonesElided, m.IndexUpdatesElided,
		m.SourcesAdded, m.SourcesDiscarded, m.SourcesExhausted, m.SourcesErrored,
	)
	return m
}

func (m *Metrics) recordSquashChain(n int) {
	if m == nil || m.squashChainLen == nil {
		return
	}
	_ = m.squashChainLen.RecordValue(int64(n))
}

func (m *Metrics) recordStatementSize(n int) {
	if m == nil || m.statementSize == nil {
		return
	}
	_ = m.statementSize.RecordValue(int64(n))
}

// SquashChainLengthPercentile returns the requested percentile (0-100) of
// recorded squash-chain lengths.
func (m *Metrics) SquashChainLengthPercentile(p float64) int64 {
	return m.squashChainLen.ValueAtPercentile(p)
}

// StatementSizePercentile returns the requested percentile (0-100) of
// recorded statement payload sizes.
func (m *Metrics) StatementSizePercentile(p float64) int64 {
	return m.statementSize.ValueAtPercentile(p)
}

// MetricsSnapshot is a plain-data readout of Metrics' counters, for
// callers (such as cmd/vinylmerge's report subcommand) that want to render
// them without reaching into the prometheus collector interface directly.
type MetricsSnapshot struct {
	YieldedAboveHorizon int64
	YieldedBelowHorizon int64
	UpsertsFolded       int64
	TombstonesElided    int64
	IndexUpdatesElided  int64
	SourcesAdded        int64
	SourcesDiscarded    int64
	SourcesExhausted    int64
	SourcesErrored      int64
}

func counterValue(c prometheus.Counter) int64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return int64(m.GetCounter().GetValue())
}

// Snapshot reads every counter's current value.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		YieldedAboveHorizon: counterValue(m.YieldedAboveHorizon),
		YieldedBelowHorizon: counterValue(m.YieldedBelowHorizon),
		UpsertsFolded:       counterValue(m.UpsertsFolded),
		TombstonesElided:    counterValue(m.TombstonesElided),
		IndexUpdatesElided:  counterValue(m.IndexUpdatesElided),
		SourcesAdded:        counterValue(m.SourcesAdded),
		SourcesDiscarded:    counterValue(m.SourcesDiscarded),
		SourcesExhausted:    counterValue(m.SourcesExhausted),
		SourcesErrored:      counterValue(m.SourcesErrored),
	}
}
