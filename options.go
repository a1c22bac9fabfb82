// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package vinyl

import "github.com/kvengine/vinyl/internal/base"

// Options carries the construction parameters for a WriteIterator, plus the
// injectable collaborators (Logger, Metrics, UpsertApplier), following the
// common Options + EnsureDefaults pattern. There is no file or environment
// config loader: configuration loading belongs to the host embedding this
// core, so Options is a plain Go struct a caller builds programmatically.
type Options struct {
	// KeyDef orders statement keys. Required.
	KeyDef *base.KeyDef

	// IsPrimary reports whether the iterator is building the primary
	// index's output. Passed through to the UpsertApplier.
	IsPrimary bool

	// IndexColumnMask is the set of columns the target index depends on;
	// zero for the primary index, where no column-mask elision applies.
	IndexColumnMask ColumnMask

	// IsLastLevel reports whether the output level has no older data
	// beneath it, enabling tombstone and no-base-upsert elision.
	IsLastLevel bool

	// OldestVLSN is the horizon: the minimum version still visible to any
	// active reader. Versions strictly greater are preserved verbatim.
	OldestVLSN Version

	// Pool is the tuple_ref/tuple_unref collaborator for refable
	// statements. Required whenever any added source is refable or any
	// UPSERT is folded, since folded results are always refable.
	Pool StatementPool

	// Applier folds UPSERT statements onto a base. Defaults to
	// DefaultUpsertApplier.
	Applier *UpsertApplier

	// Logger receives errors returned when closing a source stream.
	// Defaults to DefaultLogger{}.
	Logger Logger

	// Metrics receives counts and histograms describing the merge.
	// Defaults to NewMetrics(nil), registered on a private registry.
	Metrics *Metrics
}

// EnsureDefaults returns o with every optional field filled in. If o is
// nil, it returns a fresh, fully-defaulted Options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	n := *o
	if n.Applier == nil {
		n.Applier = DefaultUpsertApplier
	}
	if n.Logger == nil {
		n.Logger = DefaultLogger{}
	}
	if n.Metrics == nil {
		n.Metrics = NewMetrics(nil)
	}
	return &n
}
