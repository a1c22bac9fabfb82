// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package sourcereg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryAddGetRemove(t *testing.T) {
	r := New[string]()
	id1 := r.Add("a")
	id2 := r.Add("b")
	require.NotEqual(t, id1, id2)
	require.Equal(t, 2, r.Len())

	v, ok := r.Get(id1)
	require.True(t, ok)
	require.Equal(t, "a", v)

	r.Remove(id1)
	require.Equal(t, 1, r.Len())
	_, ok = r.Get(id1)
	require.False(t, ok)
}

func TestRegistryEach(t *testing.T) {
	r := New[int]()
	ids := map[ID]int{}
	for i := 0; i < 5; i++ {
		id := r.Add(i * 10)
		ids[id] = i * 10
	}
	seen := map[ID]int{}
	r.Each(func(id ID, v int) {
		seen[id] = v
	})
	require.Equal(t, ids, seen)
}

func TestRegistryRemoveUnknownIsNoop(t *testing.T) {
	r := New[int]()
	require.NotPanics(t, func() { r.Remove(ID(999)) })
}
