// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package sourcereg implements a side table of sources: instead of an
// intrusive pointer from heap item back to owning source, a heap item
// carries a small integer ID that indexes into this registry. This keeps
// heap nodes cheap to copy and gives WriteIterator.Close a way to enumerate
// every still-live source (in unspecified order).
package sourcereg

import "github.com/cockroachdb/swiss"

// ID identifies a registered source. IDs are assigned monotonically and
// are never reused within the lifetime of a registry.
type ID uint64

// Registry is a generic side table from ID to a source value, backed by a
// swiss-table hash map for O(1) amortized insert/delete with low per-entry
// overhead, favored here over the builtin map since sources churn in and
// out of the registry on every exhaustion and every add.
type Registry[V any] struct {
	next  ID
	items *swiss.Map[ID, V]
}

// New returns an empty registry.
func New[V any]() *Registry[V] {
	return &Registry[V]{items: swiss.New[ID, V](8)}
}

// Add registers v under a freshly allocated ID and returns it.
func (r *Registry[V]) Add(v V) ID {
	r.next++
	id := r.next
	r.items.Put(id, v)
	return id
}

// Get looks up the value registered under id.
func (r *Registry[V]) Get(id ID) (V, bool) {
	return r.items.Get(id)
}

// Remove deregisters id. It is a no-op if id was never registered or was
// already removed.
func (r *Registry[V]) Remove(id ID) {
	r.items.Delete(id)
}

// Len returns the number of currently registered entries.
func (r *Registry[V]) Len() int {
	return r.items.Len()
}

// Each calls fn once for every currently registered entry, in unspecified
// order. fn must not mutate the registry.
func (r *Registry[V]) Each(fn func(ID, V)) {
	r.items.All(func(id ID, v V) bool {
		fn(id, v)
		return true
	})
}
