// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package main

import "github.com/kvengine/vinyl/internal/base"

// noopPool is the StatementPool the CLI hands to the iterator: the
// synthetic memory levels own their statements for the lifetime of the
// process, so there is nothing for a real reference-counted pool to do.
// Production callers plug in a pool backed by their actual memory-level
// allocator.
type noopPool struct{}

func (noopPool) Ref(*base.Statement)   {}
func (noopPool) Unref(*base.Statement) {}
