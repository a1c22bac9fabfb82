// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package vinyl

import (
	"github.com/cockroachdb/errors"

	"github.com/kvengine/vinyl/internal/base"
)

// heapItem is one slot in the merge heap: either a real Source or, for the
// lifetime of a single squash, the key_end sentinel (src == nil). It carries
// an explicit idx field because a squash abort must be able to remove the
// sentinel from an arbitrary position, not just the top: the sentinel can
// have sifted away from the heap's root by the time a mid-squash error
// forces cleanup.
type heapItem struct {
	src *Source // nil => key_end sentinel
	idx int     // position in mergeHeap.items; -1 when not in the heap
}

func (h *heapItem) isSentinel() bool { return h.src == nil }

// mergeHeap is the min-heap of active sources, ordered by (key asc, version
// desc, type tie-break), with the key_end sentinel comparing as "equal key
// to the iterator's current statement, but greater than any real node at
// that key." The heap never holds more than one sentinel at a time.
//
// Structurally this is a textbook binary heap (see container/heap), kept
// hand-rolled rather than adapted to that interface because the comparator
// needs a back-reference to the owning iterator (for the sentinel's virtual
// key) that container/heap's interface has no room for.
type mergeHeap struct {
	it    *WriteIterator
	items []*heapItem
}

func newMergeHeap(it *WriteIterator) *mergeHeap {
	return &mergeHeap{it: it}
}

func (h *mergeHeap) Len() int { return len(h.items) }

// Peek returns the current top without modifying the heap, or nil if empty.
func (h *mergeHeap) Peek() *heapItem {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}

// less implements the three-way order: key ascending, version descending,
// non-UPSERT before UPSERT; the sentinel substitutes
// the iterator's current key and always loses ties at equal key.
func (h *mergeHeap) less(i, j int) bool {
	a, b := h.items[i], h.items[j]

	var keyA, keyB base.Key
	if a.isSentinel() {
		keyA = h.it.current.Key
	} else {
		keyA = a.src.current.Key
	}
	if b.isSentinel() {
		keyB = h.it.current.Key
	} else {
		keyB = b.src.current.Key
	}

	if c := h.it.kd.Cmp(keyA, keyB); c != 0 {
		return c < 0
	}

	if a.isSentinel() && b.isSentinel() {
		panic(errors.AssertionFailedf("vinyl: key_end sentinel compared against itself"))
	}
	if a.isSentinel() {
		return false // sentinel never sorts before a real node at equal key
	}
	if b.isSentinel() {
		return true
	}

	sa, sb := a.src.current, b.src.current
	if sa.Vers != sb.Vers {
		return sa.Vers > sb.Vers // larger version wins (sorts first)
	}
	aUp, bUp := sa.Kind == base.StmtUpsert, sb.Kind == base.StmtUpsert
	if aUp != bUp {
		return bUp // non-UPSERT (terminal) outranks UPSERT
	}
	return false
}

func (h *mergeHeap) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].idx = i
	h.items[j].idx = j
}

func (h *mergeHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.less(j, i) {
			break
		}
		h.swap(i, j)
		j = i
	}
}

// down re-sifts starting at i0 and reports whether it moved anything.
func (h *mergeHeap) down(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.less(j2, j1) {
			j = j2
		}
		if !h.less(j, i) {
			break
		}
		h.swap(i, j)
		i = j
	}
	return i > i0
}

// Push inserts item into the heap. It cannot fail in this implementation:
// Go slice growth that cannot be satisfied manifests as a fatal runtime
// allocation failure, not a recoverable error, so heap growth never
// surfaces ErrOutOfMemory.
func (h *mergeHeap) Push(item *heapItem) {
	item.idx = len(h.items)
	h.items = append(h.items, item)
	h.up(item.idx)
}

// Remove removes and returns the item at heap index i.
func (h *mergeHeap) Remove(i int) *heapItem {
	n := len(h.items) - 1
	if i != n {
		h.swap(i, n)
		if !h.down(i, n) {
			h.up(i)
		}
	}
	item := h.items[n]
	h.items[n] = nil
	h.items = h.items[:n]
	item.idx = -1
	return item
}

// PopTop removes and returns the current top.
func (h *mergeHeap) PopTop() *heapItem {
	return h.Remove(0)
}

// RemoveItem removes a specific, already-tracked item from wherever it
// currently sits in the heap. It is a no-op if item is not present. This is
// the operation the squash-abort cleanup path needs: the key_end sentinel
// may have sifted away from the top by the time an error aborts the squash
// loop.
func (h *mergeHeap) RemoveItem(item *heapItem) {
	if item.idx < 0 || item.idx >= len(h.items) || h.items[item.idx] != item {
		return
	}
	h.Remove(item.idx)
}

// NotifyTopChanged re-sifts the current top after the caller has mutated
// its source's current statement in place.
func (h *mergeHeap) NotifyTopChanged() {
	h.down(0, len(h.items))
}
