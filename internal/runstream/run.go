// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package runstream is a minimal on-disk run input source: an external
// collaborator the merge core treats abstractly. A Run is a sorted sequence
// of compressed pages; RunStream decodes them lazily, one page at a time,
// through a decompressor pool keyed by a cheap hash of the run's identity
// rather than a full path, so a caller adding a run never has to compute or
// manage a decompression-context key itself.
package runstream

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/kvengine/vinyl/internal/base"
)

type page struct {
	codec Codec
	raw   []byte
}

// Run is an immutable, sorted, on-disk (here, in-memory) file of
// statements, built page by page via Builder.
type Run struct {
	// Identity names the run for decompression-context pooling and
	// diagnostics (e.g. a file path or run number in a real engine).
	Identity string
	pages    []page
}

// Builder assembles a Run one page at a time, matching how a real dump
// writer buffers statements and flushes a page once it reaches a target
// size.
type Builder struct {
	codec   Codec
	pending []*base.Statement
	pages   []page
}

// NewBuilder returns a Builder that compresses pages with codec.
func NewBuilder(codec Codec) *Builder {
	return &Builder{codec: codec}
}

// Add appends stmt to the page currently being assembled.
func (b *Builder) Add(stmt *base.Statement) {
	b.pending = append(b.pending, stmt)
}

// FlushPage compresses and seals the statements accumulated since the last
// flush into a new page. It is a no-op if nothing is pending.
func (b *Builder) FlushPage() error {
	if len(b.pending) == 0 {
		return nil
	}
	raw, err := encodePage(b.pending, b.codec)
	if err != nil {
		return err
	}
	b.pages = append(b.pages, page{codec: b.codec, raw: raw})
	b.pending = b.pending[:0]
	return nil
}

// Finish flushes any pending statements and returns the completed Run.
func (b *Builder) Finish(identity string) (*Run, error) {
	if err := b.FlushPage(); err != nil {
		return nil, err
	}
	return &Run{Identity: identity, pages: b.pages}, nil
}

// Open returns a fresh, non-refable RunStream over the run's pages.
func (r *Run) Open() (base.Stream, error) {
	return &RunStream{run: r, decoderKey: xxhash.Sum64String(r.Identity), pageIdx: -1}, nil
}

// RunStream is the non-refable Stream implementation over a Run: its
// statements live in a page decoded into a buffer that the stream
// invalidates on its next page transition, so the iterator must clone any
// statement it retains past one advance.
type RunStream struct {
	run        *Run
	decoderKey uint64
	pageIdx    int
	cur        []*base.Statement
	pos        int
}

// Next implements base.Stream.
func (s *RunStream) Next() (*base.Statement, error) {
	for s.pos >= len(s.cur) {
		s.pageIdx++
		if s.pageIdx >= len(s.run.pages) {
			return nil, nil
		}
		p := s.run.pages[s.pageIdx]
		dec, err := zstdDecoderFor(s.decoderKey, p.codec)
		if err != nil {
			return nil, err
		}
		stmts, err := decodePage(p.raw, p.codec, dec)
		if err != nil {
			return nil, err
		}
		s.cur = stmts
		s.pos = 0
	}
	stmt := s.cur[s.pos]
	s.pos++
	return stmt, nil
}

// Close implements base.Stream.
func (s *RunStream) Close() error { return nil }

// Refable implements base.Stream.
func (s *RunStream) Refable() bool { return false }

// decoderPool caches zstd decoders per run identity: constructing a zstd
// decoder is comparatively expensive, and a compaction revisits the same
// run's pages many times over the run's lifetime.
type decoderPool struct {
	mu       sync.Mutex
	decoders map[uint64]*zstd.Decoder
}

var zstdPool = &decoderPool{decoders: make(map[uint64]*zstd.Decoder)}

func zstdDecoderFor(key uint64, codec Codec) (*zstd.Decoder, error) {
	if codec != CodecZstd {
		return nil, nil
	}
	zstdPool.mu.Lock()
	defer zstdPool.mu.Unlock()
	if d, ok := zstdPool.decoders[key]; ok {
		return d, nil
	}
	d, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	zstdPool.decoders[key] = d
	return d, nil
}
