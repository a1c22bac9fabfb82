// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package vinyl

import (
	"github.com/kvengine/vinyl/internal/base"
	"github.com/kvengine/vinyl/internal/upsert"
)

// These aliases re-export the shared primitives of internal/base as part of
// this package's public API, the usual pattern for keeping a small internal
// package's types as the single source of truth while surfacing them under
// the root package's name.

// Key is an opaque ordered tuple; see base.Key.
type Key = base.Key

// Compare orders two keys under a caller-supplied key definition.
type Compare = base.Compare

// KeyDef bundles a Compare function with a diagnostic name.
type KeyDef = base.KeyDef

// Version is a monotonic per-database sequence number.
type Version = base.Version

// StmtKind enumerates REPLACE, DELETE, and UPSERT.
type StmtKind = base.StmtKind

// The closed set of statement kinds.
const (
	StmtReplace = base.StmtReplace
	StmtDelete  = base.StmtDelete
	StmtUpsert  = base.StmtUpsert
)

// ColumnMask is a 64-bit set of touched logical columns.
type ColumnMask = base.ColumnMask

// Statement is the versioned, typed record the iterator yields.
type Statement = base.Statement

// StatementPool is the tuple_ref/tuple_unref collaborator for refable
// statements.
type StatementPool = base.StatementPool

// Stream is a lazy, pull-only, ordered producer of statements over one
// source.
type Stream = base.Stream

// Logger is the injectable logging collaborator.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logger.
type DefaultLogger = base.DefaultLogger

// The three error kinds the write iterator can surface.
var (
	ErrOutOfMemory = base.ErrOutOfMemory
	ErrStream      = base.ErrStream
	ErrApply       = base.ErrApply
)

// UpsertFunc folds a deferred UPSERT statement onto an optional base
// statement for the same key; see internal/upsert.Func.
type UpsertFunc = upsert.Func

// UpsertApplier pairs an UpsertFunc with a diagnostic name.
type UpsertApplier = upsert.Applier

// DefaultUpsertApplier is the arithmetic applier used when Options doesn't
// supply one; see internal/upsert.Default.
var DefaultUpsertApplier = upsert.Default
