// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package vinyl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvengine/vinyl/internal/base"
)

func testKeyDef() *base.KeyDef {
	return &base.KeyDef{Compare: func(a, b base.Key) int { return bytes.Compare(a, b) }, Name: "bytewise"}
}

func realItem(key string, vers base.Version, kind base.StmtKind) *heapItem {
	return &heapItem{src: &Source{current: &base.Statement{Key: base.Key(key), Vers: vers, Kind: kind}}}
}

func TestMergeHeapOrdersByKeyAscending(t *testing.T) {
	it := &WriteIterator{kd: testKeyDef()}
	h := newMergeHeap(it)

	h.Push(realItem("c", 1, base.StmtReplace))
	h.Push(realItem("a", 1, base.StmtReplace))
	h.Push(realItem("b", 1, base.StmtReplace))

	var order []string
	for h.Len() > 0 {
		top := h.PopTop()
		order = append(order, string(top.src.current.Key))
	}
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestMergeHeapOrdersByVersionDescendingAtEqualKey(t *testing.T) {
	it := &WriteIterator{kd: testKeyDef()}
	h := newMergeHeap(it)

	h.Push(realItem("a", 5, base.StmtReplace))
	h.Push(realItem("a", 9, base.StmtReplace))
	h.Push(realItem("a", 7, base.StmtReplace))

	var vers []base.Version
	for h.Len() > 0 {
		top := h.PopTop()
		vers = append(vers, top.src.current.Vers)
	}
	require.Equal(t, []base.Version{9, 7, 5}, vers)
}

func TestMergeHeapTerminalOutranksUpsertAtEqualKeyAndVersion(t *testing.T) {
	it := &WriteIterator{kd: testKeyDef()}
	h := newMergeHeap(it)

	h.Push(realItem("a", 5, base.StmtUpsert))
	h.Push(realItem("a", 5, base.StmtReplace))

	top := h.PopTop()
	require.Equal(t, base.StmtReplace, top.src.current.Kind)
}

func TestMergeHeapSentinelSortsAfterRealNodeAtSameKey(t *testing.T) {
	it := &WriteIterator{kd: testKeyDef(), current: &base.Statement{Key: base.Key("a"), Vers: 5}}
	h := newMergeHeap(it)
	sentinel := &heapItem{src: nil}

	h.Push(sentinel)
	h.Push(realItem("a", 5, base.StmtReplace))

	top := h.Peek()
	require.False(t, top.isSentinel(), "a real node at the sentinel's key must sort first")
}

func TestMergeHeapSentinelSortsBeforeNodesAtGreaterKeys(t *testing.T) {
	it := &WriteIterator{kd: testKeyDef(), current: &base.Statement{Key: base.Key("a"), Vers: 5}}
	h := newMergeHeap(it)
	sentinel := &heapItem{src: nil}

	h.Push(sentinel)
	h.Push(realItem("z", 1, base.StmtReplace))

	top := h.Peek()
	require.True(t, top.isSentinel())
}

func TestMergeHeapRemoveItemFromArbitraryPosition(t *testing.T) {
	it := &WriteIterator{kd: testKeyDef(), current: &base.Statement{Key: base.Key("m"), Vers: 1}}
	h := newMergeHeap(it)

	a := realItem("a", 1, base.StmtReplace)
	sentinel := &heapItem{src: nil}
	z := realItem("z", 1, base.StmtReplace)

	h.Push(a)
	h.Push(sentinel)
	h.Push(z)
	require.Equal(t, 3, h.Len())

	h.RemoveItem(sentinel)
	require.Equal(t, 2, h.Len())

	var order []string
	for h.Len() > 0 {
		order = append(order, string(h.PopTop().src.current.Key))
	}
	require.Equal(t, []string{"a", "z"}, order)
}

func TestMergeHeapRemoveItemNoopWhenAlreadyRemoved(t *testing.T) {
	it := &WriteIterator{kd: testKeyDef()}
	h := newMergeHeap(it)
	a := realItem("a", 1, base.StmtReplace)
	h.Push(a)
	removed := h.PopTop()
	require.NotPanics(t, func() { h.RemoveItem(removed) })
}
