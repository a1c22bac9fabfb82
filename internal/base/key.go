// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package base holds the data primitives shared by the merge core and its
// collaborators: keys, statements, reference-counting, logging, and the
// error kinds the write iterator can surface. These are small,
// dependency-light types that both the public package and the internal
// collaborators import.
package base

// Compare orders two keys under a caller-supplied key definition, returning
// a value less than, equal to, or greater than zero as a and b compare.
// The merge core never interprets key bytes itself; ordering is entirely
// delegated to this collaborator.
type Compare func(a, b Key) int

// Key is an opaque ordered tuple. Its internal structure is meaningless to
// the merge core; only a KeyDef's Compare function gives it an order.
type Key []byte

// KeyDef bundles the comparison function for a particular index together
// with a name used for diagnostics and metrics labels.
type KeyDef struct {
	Compare Compare
	Name    string
}

// Cmp compares a and b under this key definition.
func (kd *KeyDef) Cmp(a, b Key) int {
	return kd.Compare(a, b)
}
