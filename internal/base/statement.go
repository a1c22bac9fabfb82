// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package base

import (
	"fmt"

	"github.com/cockroachdb/redact"
)

// Version is a monotonic, strictly increasing (per database, across
// commits) sequence number attached to every statement: precedence among
// statements for the same key is decided by comparing versions, larger
// wins.
type Version uint64

// String implements fmt.Stringer.
func (v Version) String() string {
	return fmt.Sprintf("%d", uint64(v))
}

// SafeFormat implements redact.SafeFormatter so versions can flow through a
// redaction-aware logger without a reviewer needing to reason about whether
// a sequence number ever leaks payload bytes (it never does, but the
// interface has to be implemented explicitly to participate).
func (v Version) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d", uint64(v))
}

// StmtKind enumerates the closed set of statement types the write iterator
// understands.
type StmtKind uint8

const (
	// StmtReplace is a terminal statement that installs a new value.
	StmtReplace StmtKind = iota
	// StmtDelete is a terminal tombstone.
	StmtDelete
	// StmtUpsert is a deferred update that must be folded against a base
	// statement (or no base, at the last level) before it can be written
	// out as a terminal statement.
	StmtUpsert
)

var stmtKindNames = [...]string{"REPLACE", "DELETE", "UPSERT"}

// String implements fmt.Stringer.
func (k StmtKind) String() string {
	if int(k) < len(stmtKindNames) {
		return stmtKindNames[k]
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
}

// SafeFormat implements redact.SafeFormatter.
func (k StmtKind) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(k.String()))
}

// IsTerminal reports whether the kind is a terminal statement (REPLACE or
// DELETE) as opposed to a deferred UPSERT.
func (k StmtKind) IsTerminal() bool {
	return k == StmtReplace || k == StmtDelete
}

// ColumnMask is a 64-bit set describing which logical columns an update
// touched. It is set only on REPLACE/DELETE statements produced by an
// update operation; it is zero otherwise.
type ColumnMask uint64

// CanSkipIndexUpdate reports whether an update to a secondary index can be
// elided because none of the columns the index depends on were touched by
// the statement that produced it.
func CanSkipIndexUpdate(indexMask, stmtMask ColumnMask) bool {
	return indexMask&stmtMask == 0
}

// Statement is an immutable, versioned record keyed by Key. Ownership
// discipline (refable vs. non-refable) is tracked by the Source that
// produced it, not by the statement itself: a Statement carries no
// reference count of its own.
type Statement struct {
	Key        Key
	Vers       Version
	Kind       StmtKind
	ColumnMask ColumnMask
	Payload    []byte
}

// String implements fmt.Stringer for debugging and test failure output.
func (s *Statement) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%s,%s", string(s.Key), s.Vers, s.Kind)
}

// Clone returns a deep copy of the statement, used when a non-refable
// statement (backed by a buffer a stream may invalidate on its next
// advance) must be retained past that boundary.
func (s *Statement) Clone() *Statement {
	if s == nil {
		return nil
	}
	clone := &Statement{
		Vers:       s.Vers,
		Kind:       s.Kind,
		ColumnMask: s.ColumnMask,
	}
	if s.Key != nil {
		clone.Key = append(Key(nil), s.Key...)
	}
	if s.Payload != nil {
		clone.Payload = append([]byte(nil), s.Payload...)
	}
	return clone
}

// StatementPool is the tuple_ref/tuple_unref collaborator: an external,
// reference-counted pool backing refable statements (those produced by
// memory levels). Every Ref must be matched by exactly one Unref along
// every exit path.
type StatementPool interface {
	Ref(*Statement)
	Unref(*Statement)
}
