// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package vinyl

import (
	"github.com/kvengine/vinyl/internal/base"
	"github.com/kvengine/vinyl/internal/sourcereg"
)

// Source is a registered input bound to exactly one stream. It carries the
// stream's current statement (or nil, meaning exhausted) and the stream's
// ownership discipline (refable vs. non-refable).
type Source struct {
	id sourcereg.ID

	stream base.Stream

	// current is the most recently pulled statement from stream, or nil
	// once the stream has exhausted. This is *not* the iterator's "current
	// statement" (that's WriteIterator.current); it is simply the head of
	// this one source's stream.
	current *base.Statement

	// item is this source's node in the merge heap, set once when the
	// source is pushed and never reassigned afterward. step() works from
	// the heap top and does not read it.
	item *heapItem
}

// newSource allocates a Source bound to stream. It does not pull the first
// statement; its caller (WriteIterator.addSource) does that as part of the add-source
// protocol.
func newSource(stream base.Stream) *Source {
	return &Source{stream: stream}
}

func (s *Source) refable() bool { return s.stream.Refable() }

func (s *Source) exhausted() bool { return s.current == nil }

// advance pulls the next statement from the underlying stream. It performs
// no reference-counting or heap bookkeeping of its own; callers route the
// result through WriteIterator's bookkeeping.
func (s *Source) advance() (*base.Statement, error) {
	return s.stream.Next()
}

// closeStream idempotently releases the source's stream. Errors are
// logged, not propagated: destroy must never fail.
func (s *Source) closeStream(log base.Logger) {
	if err := s.stream.Close(); err != nil {
		log.Errorf("vinyl: error closing source stream: %v", err)
	}
}
