// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package vinyl implements the write iterator at the heart of a
// log-structured storage engine's dump/compaction pipeline: a k-way merge
// over heterogeneous statement sources with per-key squashing of deferred
// updates, MVCC-aware pruning against a read horizon, and level-aware
// elision of tombstones and no-op secondary-index updates.
//
// The iterator is single-owner and non-reentrant: one goroutine drives it
// from New to Close. It performs no internal synchronization. Multiple
// iterators may run concurrently over disjoint sources.
package vinyl
