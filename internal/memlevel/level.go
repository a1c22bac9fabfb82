// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package memlevel is a minimal in-memory level input source: an external
// collaborator the merge core treats abstractly. It gives the write
// iterator something concrete to merge in tests and the cmd/vinylmerge CLI
// without a real B-tree or skiplist memtable dependency — an ordered,
// insert-sorted slice of statements, the shape a small reference memtable
// would take before growing into a full concurrent skiplist.
package memlevel

import (
	"sort"

	"github.com/kvengine/vinyl/internal/base"
)

// Level is an ordered in-memory container of statements awaiting dump,
// sorted by (key ascending, version descending) — the same order the merge
// heap expects a single source's stream to already respect.
type Level struct {
	kd    *base.KeyDef
	stmts []*base.Statement
}

// New returns an empty level ordered under kd.
func New(kd *base.KeyDef) *Level {
	return &Level{kd: kd}
}

// Insert adds stmt, keeping the level sorted.
func (l *Level) Insert(stmt *base.Statement) {
	i := sort.Search(len(l.stmts), func(i int) bool {
		if c := l.kd.Cmp(l.stmts[i].Key, stmt.Key); c != 0 {
			return c >= 0
		}
		return l.stmts[i].Vers <= stmt.Vers
	})
	l.stmts = append(l.stmts, nil)
	copy(l.stmts[i+1:], l.stmts[i:])
	l.stmts[i] = stmt
}

// Len returns the number of statements currently in the level.
func (l *Level) Len() int { return len(l.stmts) }

// Stream returns a fresh, refable MemoryStream over the level's current
// contents. Mutating the level after calling Stream does not affect
// streams already returned.
func (l *Level) Stream() (base.Stream, error) {
	stmts := make([]*base.Statement, len(l.stmts))
	copy(stmts, l.stmts)
	return &MemoryStream{stmts: stmts}, nil
}

// MemoryStream is the refable Stream implementation over a Level's
// contents: its statements are heap-allocated and reference-counted, so
// holding one past the stream's next advance requires an explicit acquire
// through the injected StatementPool.
type MemoryStream struct {
	stmts []*base.Statement
	pos   int
}

// Next implements base.Stream.
func (s *MemoryStream) Next() (*base.Statement, error) {
	if s.pos >= len(s.stmts) {
		return nil, nil
	}
	stmt := s.stmts[s.pos]
	s.pos++
	return stmt, nil
}

// Close implements base.Stream.
func (s *MemoryStream) Close() error { return nil }

// Refable implements base.Stream.
func (s *MemoryStream) Refable() bool { return true }
