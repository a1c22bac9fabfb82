// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package base

// Stream is a lazy, pull-only, ordered producer of statements over one
// source (a memory level or an on-disk run). The write iterator never
// assumes fairness or blocking semantics; a stream is free to block on I/O
// inside Next without the iterator imposing any asynchrony model.
type Stream interface {
	// Next advances the stream and returns the next statement, or nil
	// when the stream is exhausted.
	Next() (*Statement, error)

	// Close releases the stream's resources. Close is idempotent.
	Close() error

	// Refable reports the ownership discipline of statements this stream
	// produces: true for memory levels, whose statements are
	// heap-allocated and reference-counted; false for on-disk runs, whose
	// statements live in a decoded buffer invalidated by the stream's
	// next advance.
	Refable() bool
}
