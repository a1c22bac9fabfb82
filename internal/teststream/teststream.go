// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package teststream provides a deterministic, dependency-free Stream test
// double: a scripted sequence of statements (and an optional injected
// error) that lets write_iter_test.go exercise every merge scenario without
// a real memory level or run file.
package teststream

import "github.com/kvengine/vinyl/internal/base"

// Stream is a scripted base.Stream.
type Stream struct {
	stmts   []*base.Statement
	refable bool
	pos     int
	errAt   int // index at which Next returns err; -1 disables
	err     error
	closed  bool
}

// New returns a Stream yielding stmts in order, never erroring.
func New(stmts []*base.Statement, refable bool) *Stream {
	return &Stream{stmts: stmts, refable: refable, errAt: -1}
}

// NewErroring returns a Stream yielding stmts in order, then failing with
// err on the (0-indexed) call to Next numbered errAt.
func NewErroring(stmts []*base.Statement, refable bool, errAt int, err error) *Stream {
	return &Stream{stmts: stmts, refable: refable, errAt: errAt, err: err}
}

// Next implements base.Stream.
func (s *Stream) Next() (*base.Statement, error) {
	if s.pos == s.errAt {
		return nil, s.err
	}
	if s.pos >= len(s.stmts) {
		return nil, nil
	}
	stmt := s.stmts[s.pos]
	s.pos++
	return stmt, nil
}

// Close implements base.Stream.
func (s *Stream) Close() error {
	s.closed = true
	return nil
}

// Refable implements base.Stream.
func (s *Stream) Refable() bool { return s.refable }

// Closed reports whether Close has been called, for test assertions.
func (s *Stream) Closed() bool { return s.closed }

// Pool is a fake StatementPool that counts outstanding references per
// statement, giving tests a concrete way to verify that every refable
// statement acquired is released exactly once.
type Pool struct {
	refs map[*base.Statement]int
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{refs: make(map[*base.Statement]int)}
}

// Ref implements base.StatementPool.
func (p *Pool) Ref(s *base.Statement) {
	p.refs[s]++
}

// Unref implements base.StatementPool.
func (p *Pool) Unref(s *base.Statement) {
	p.refs[s]--
}

// Balanced reports whether every acquired statement has an equal number of
// releases (no leaks, no double-releases).
func (p *Pool) Balanced() bool {
	for _, n := range p.refs {
		if n != 0 {
			return false
		}
	}
	return true
}

// Outstanding returns the number of statements with a currently positive
// reference count.
func (p *Pool) Outstanding() int {
	n := 0
	for _, c := range p.refs {
		if c > 0 {
			n++
		}
	}
	return n
}
