// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package vinyl

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"

	"github.com/kvengine/vinyl/internal/base"
	"github.com/kvengine/vinyl/internal/invariants"
	"github.com/kvengine/vinyl/internal/memlevel"
	"github.com/kvengine/vinyl/internal/runstream"
	"github.com/kvengine/vinyl/internal/sourcereg"
)

// maxConcurrentRunOpens bounds how many run streams AddRuns opens at once,
// so a compaction with hundreds of overlapping runs doesn't thundering-herd
// the decompression-context pool.
const maxConcurrentRunOpens = 16

// WriteIterator merges several ordered statement sources into one, folding
// deferred updates and pruning against a read horizon. It is single-owner
// and non-reentrant: one goroutine drives it from New to Close.
type WriteIterator struct {
	opts *Options
	kd   *base.KeyDef

	heap    *mergeHeap
	sources *sourcereg.Registry[*Source]

	// current is the statement the iterator is presently assembling into a
	// yield, via the single set-current chokepoint below.
	current        *base.Statement
	currentRefable bool

	// sentinel is the key_end node, pushed and removed once per squash.
	// It is allocated once and reused: only one squash ever runs at a
	// time, since the iterator is non-reentrant.
	sentinel *heapItem

	closed bool
}

// New creates a WriteIterator with no sources yet.
func New(opts *Options) (*WriteIterator, error) {
	opts = opts.EnsureDefaults()
	if opts.KeyDef == nil {
		return nil, errors.New("vinyl: Options.KeyDef is required")
	}

	it := &WriteIterator{
		opts:    opts,
		kd:      opts.KeyDef,
		sources: sourcereg.New[*Source](),
	}
	it.heap = newMergeHeap(it)
	it.sentinel = &heapItem{src: nil}
	return it, nil
}

// AddMemory registers an in-memory level as a source. Only valid before the
// first call to Next.
func (it *WriteIterator) AddMemory(level *memlevel.Level) error {
	stream, err := level.Stream()
	if err != nil {
		return errors.Wrap(err, "vinyl: opening memory level stream")
	}
	return it.addSource(stream)
}

// AddRun registers an on-disk run as a source. The run's decompression
// context key is derived internally from the run's identity (see
// internal/runstream), not supplied by the caller. Only valid before the
// first call to Next.
func (it *WriteIterator) AddRun(run *runstream.Run) error {
	stream, err := run.Open()
	if err != nil {
		return errors.Wrap(err, "vinyl: opening run stream")
	}
	return it.addSource(stream)
}

// AddRuns registers many runs at once, opening their streams concurrently
// (bounded by maxConcurrentRunOpens) and then priming each stream and adding
// it to the heap one at a time through addSource, since heap mutation
// itself is not concurrency-safe.
// This is the batch-open pattern a real compaction with many overlapping
// runs needs, built on top of AddRun's one-at-a-time contract.
func (it *WriteIterator) AddRuns(ctx context.Context, runs []*runstream.Run) error {
	type opened struct {
		stream base.Stream
		err    error
	}
	results := make([]opened, len(runs))
	sem := semaphore.NewWeighted(maxConcurrentRunOpens)

	g := make(chan struct{}, len(runs))
	for i, run := range runs {
		i, run := i, run
		go func() {
			defer func() { g <- struct{}{} }()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = opened{err: err}
				return
			}
			defer sem.Release(1)
			stream, err := run.Open()
			results[i] = opened{stream: stream, err: err}
		}()
	}
	for range runs {
		<-g
	}

	closeFrom := func(from int) {
		for _, r := range results[from:] {
			if r.stream != nil {
				r.stream.Close()
			}
		}
	}

	for _, r := range results {
		if r.err != nil {
			// At least one run failed to open: none have been handed to
			// addSource yet, so every successfully opened stream in the
			// batch (not just those after this one) is still ours to close.
			closeFrom(0)
			return errors.Wrap(r.err, "vinyl: opening run stream")
		}
	}
	for i, r := range results {
		if err := it.addSource(r.stream); err != nil {
			// addSource already closed r.stream on its own failure; only
			// the remaining, not-yet-added streams are still open.
			closeFrom(i + 1)
			return err
		}
	}
	return nil
}

// addSource implements the add-source protocol: pull the first statement,
// discard silently if the stream is immediately empty, otherwise push into
// the heap; on any failure close the stream and propagate.
func (it *WriteIterator) addSource(stream base.Stream) error {
	src := newSource(stream)
	stmt, err := src.advance()
	if err != nil {
		src.closeStream(it.opts.Logger)
		it.opts.Metrics.SourcesErrored.Inc()
		return streamErr(err)
	}
	if stmt == nil {
		src.closeStream(it.opts.Logger)
		it.opts.Metrics.SourcesDiscarded.Inc()
		return nil
	}

	src.current = stmt
	src.id = it.sources.Add(src)
	item := &heapItem{src: src}
	src.item = item
	it.heap.Push(item)
	it.opts.Metrics.SourcesAdded.Inc()
	return nil
}

func streamErr(err error) error {
	return errors.Mark(errors.Wrap(err, "vinyl: stream error"), base.ErrStream)
}

// step advances the heap top's stream by one statement, re-sifting on
// success, removing and destroying the source on exhaustion, and leaving
// the source in the heap (to be destroyed at Close) on error.
func (it *WriteIterator) step() error {
	top := it.heap.Peek()
	if top == nil {
		return nil
	}
	if top.isSentinel() {
		return errors.AssertionFailedf("vinyl: step invoked with the key_end sentinel at the heap top")
	}

	src := top.src
	stmt, err := src.advance()
	if err != nil {
		it.opts.Metrics.SourcesErrored.Inc()
		return streamErr(err)
	}

	src.current = stmt
	if stmt == nil {
		it.heap.Remove(top.idx)
		it.sources.Remove(src.id)
		src.closeStream(it.opts.Logger)
		it.opts.Metrics.SourcesExhausted.Inc()
		return nil
	}

	it.heap.NotifyTopChanged()
	return nil
}

// setCurrent is the single chokepoint through which the iterator's current
// statement changes: release the prior acquisition (if
// refable), store the new statement, acquire it (if refable) or clone it
// (if not, since a non-refable statement lives in a buffer the next stream
// advance invalidates). In invariant builds, it also checks the
// monotonicity assertion: either strict progress in key, or a
// non-increasing version within a squash at the same key.
func (it *WriteIterator) setCurrent(stmt *base.Statement, refable bool) {
	prior := it.current
	if prior != nil && it.currentRefable {
		it.opts.Pool.Unref(prior)
	}

	var next *base.Statement
	if stmt != nil {
		if refable {
			it.opts.Pool.Ref(stmt)
			next = stmt
		} else {
			next = stmt.Clone()
		}
	}

	if invariants.Enabled && prior != nil && next != nil {
		if !(it.kd.Cmp(prior.Key, next.Key) < 0 || prior.Vers >= next.Vers) {
			panic(errors.AssertionFailedf(
				"vinyl: set-current monotonicity violated: prior=%s next=%s", prior, next))
		}
	}

	it.current = next
	it.currentRefable = refable && next != nil
}

// squashCurrentKey folds all remaining statements at the iterator's current
// key into a single terminal statement where possible, leaving the heap
// positioned past every statement for that key. It
// returns the number of statements folded together (including the
// original candidate), for Metrics.
//
// The apply-then-check-sentinel ordering below intentionally does not
// break out of the loop the first time the sentinel is peeked: it first
// determines whether an apply is due (current is still an UPSERT, and
// either the top is a real statement for the same key, or this is the
// last level with no base remaining) and performs it, and only then checks
// for the sentinel. A literal "peek top; if sentinel, break" as the very
// first loop action would make the last-level, no-base fold unreachable.
func (it *WriteIterator) squashCurrentKey() (int, error) {
	chainLen := 1
	it.heap.Push(it.sentinel)
	defer it.heap.RemoveItem(it.sentinel)

	for {
		top := it.heap.Peek()
		isReal := !top.isSentinel()

		if it.current.Kind == base.StmtUpsert && (isReal || it.opts.IsLastLevel) {
			var baseStmt *base.Statement
			if isReal {
				baseStmt = top.src.current
			}
			result, err := it.opts.Applier.Apply(it.current, baseStmt, it.kd, it.opts.IsPrimary)
			if err != nil {
				return chainLen, errors.Mark(errors.Wrap(err, "vinyl: upsert apply"), base.ErrApply)
			}
			it.opts.Metrics.UpsertsFolded.Inc()
			it.setCurrent(result, true)
		}

		if top.isSentinel() {
			break
		}
		chainLen++
		if err := it.step(); err != nil {
			return chainLen, err
		}
	}
	return chainLen, nil
}

// Next returns the next statement to write, or (nil, nil) at end of stream.
// The returned pointer is valid only until the next call to Next or Close.
func (it *WriteIterator) Next() (*base.Statement, error) {
	if it.closed {
		return nil, errors.AssertionFailedf("vinyl: Next called after Close")
	}

	for {
		top := it.heap.Peek()
		if top == nil {
			it.setCurrent(nil, false)
			return nil, nil
		}

		candidate := top.src.current
		refable := top.src.refable()
		it.setCurrent(candidate, refable)
		if err := it.step(); err != nil {
			return nil, err
		}

		if it.current.Vers > it.opts.OldestVLSN {
			it.opts.Metrics.YieldedAboveHorizon.Inc()
			it.opts.Metrics.recordStatementSize(len(it.current.Payload))
			return it.current, nil
		}

		if !it.opts.IsPrimary && it.opts.IndexColumnMask != 0 &&
			it.current.Kind.IsTerminal() && it.current.ColumnMask != 0 &&
			base.CanSkipIndexUpdate(it.opts.IndexColumnMask, it.current.ColumnMask) {
			it.opts.Metrics.IndexUpdatesElided.Inc()
			continue
		}

		chainLen, err := it.squashCurrentKey()
		if err != nil {
			return nil, err
		}
		it.opts.Metrics.recordSquashChain(chainLen)

		if it.current.Kind == base.StmtDelete && it.opts.IsLastLevel {
			it.opts.Metrics.TombstonesElided.Inc()
			continue
		}

		it.opts.Metrics.YieldedBelowHorizon.Inc()
		it.opts.Metrics.recordStatementSize(len(it.current.Payload))
		return it.current, nil
	}
}

// Close releases the current statement and destroys every remaining
// source. Close never fails and is safe to call after any error returned
// from Next, AddMemory, or AddRun.
func (it *WriteIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.setCurrent(nil, false)
	it.sources.Each(func(_ sourcereg.ID, src *Source) {
		src.closeStream(it.opts.Logger)
	})
	it.heap = nil
	return nil
}
