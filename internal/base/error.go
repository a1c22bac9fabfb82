// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package base

import "github.com/cockroachdb/errors"

// The three error kinds the write iterator can surface. Call sites either
// wrap these sentinels with errors.Wrapf or mark a wrapped cause with
// errors.Mark; callers distinguish kinds with errors.Is.
var (
	// ErrOutOfMemory is the out-of-memory error kind. No code path in this
	// module returns it: in Go, an allocation that cannot be satisfied
	// (a source, merge-heap growth, the key-boundary sentinel) is a fatal
	// runtime error rather than a recoverable one.
	ErrOutOfMemory = errors.New("vinyl: out of memory")

	// ErrStream is returned when an underlying source stream fails to
	// decode or read the next statement.
	ErrStream = errors.New("vinyl: stream error")

	// ErrApply is returned when the UpsertApplier fails to fold an upsert
	// onto its base statement.
	ErrApply = errors.New("vinyl: apply error")
)
