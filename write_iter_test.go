// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package vinyl

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/kvengine/vinyl/internal/base"
	"github.com/kvengine/vinyl/internal/teststream"
)

// testApplier folds a single-byte signed delta (UPSERT payload) onto an
// optional base, independent of internal/upsert's own codec, so these
// tests can construct scenarios with plain, readable payload bytes.
func testApplier() *UpsertApplier {
	return &UpsertApplier{Name: "test", Apply: func(current, baseStmt *base.Statement, kd *base.KeyDef, isPrimary bool) (*base.Statement, error) {
		if current.Kind != base.StmtUpsert {
			return nil, errors.New("testApplier: current is not an upsert")
		}
		delta := int(int8(current.Payload[0]))
		switch {
		case baseStmt == nil || baseStmt.Kind == base.StmtDelete:
			return &base.Statement{Key: current.Key, Vers: current.Vers, Kind: base.StmtReplace, Payload: []byte{byte(delta)}}, nil
		case baseStmt.Kind == base.StmtUpsert:
			bd := int(int8(baseStmt.Payload[0]))
			return &base.Statement{Key: current.Key, Vers: current.Vers, Kind: base.StmtUpsert, Payload: []byte{byte(delta + bd)}}, nil
		case baseStmt.Kind == base.StmtReplace:
			bv := int(int8(baseStmt.Payload[0]))
			return &base.Statement{Key: current.Key, Vers: current.Vers, Kind: base.StmtReplace, Payload: []byte{byte(bv + delta)}}, nil
		default:
			return nil, errors.AssertionFailedf("unexpected base kind %s", baseStmt.Kind)
		}
	}}
}

type scenarioOpts struct {
	horizon     base.Version
	isPrimary   bool
	indexMask   base.ColumnMask
	isLastLevel bool
}

func newScenarioIterator(t *testing.T, o scenarioOpts, sources ...[]*base.Statement) (*WriteIterator, *teststream.Pool) {
	t.Helper()
	pool := teststream.NewPool()
	isPrimary := o.isPrimary
	opts := &Options{
		KeyDef:          testKeyDef(),
		IsPrimary:       isPrimary,
		IndexColumnMask: o.indexMask,
		IsLastLevel:     o.isLastLevel,
		OldestVLSN:      o.horizon,
		Pool:            pool,
		Applier:         testApplier(),
	}
	it, err := New(opts)
	require.NoError(t, err)
	for _, s := range sources {
		require.NoError(t, it.addSource(teststream.New(s, true)))
	}
	return it, pool
}

func drainAll(t *testing.T, it *WriteIterator) []*base.Statement {
	t.Helper()
	var out []*base.Statement
	for {
		s, err := it.Next()
		require.NoError(t, err)
		if s == nil {
			break
		}
		out = append(out, s.Clone())
	}
	return out
}

func TestSimpleMerge(t *testing.T) {
	a := []*base.Statement{
		{Key: base.Key("1"), Vers: 12, Kind: base.StmtReplace, Payload: []byte("a1")},
		{Key: base.Key("3"), Vers: 12, Kind: base.StmtReplace, Payload: []byte("a3")},
	}
	b := []*base.Statement{
		{Key: base.Key("2"), Vers: 12, Kind: base.StmtReplace, Payload: []byte("b2")},
	}
	it, pool := newScenarioIterator(t, scenarioOpts{horizon: 10}, a, b)
	defer it.Close()

	got := drainAll(t, it)
	require.Len(t, got, 3)
	require.Equal(t, "1", string(got[0].Key))
	require.Equal(t, "a1", string(got[0].Payload))
	require.Equal(t, "2", string(got[1].Key))
	require.Equal(t, "b2", string(got[1].Payload))
	require.Equal(t, "3", string(got[2].Key))
	require.Equal(t, "a3", string(got[2].Payload))
	it.Close()
	require.True(t, pool.Balanced())
}

func TestVersionShadowingAboveHorizon(t *testing.T) {
	a := []*base.Statement{{Key: base.Key("1"), Vers: 15, Kind: base.StmtReplace, Payload: []byte("new")}}
	b := []*base.Statement{{Key: base.Key("1"), Vers: 14, Kind: base.StmtReplace, Payload: []byte("old")}}
	it, pool := newScenarioIterator(t, scenarioOpts{horizon: 10}, a, b)
	defer it.Close()

	got := drainAll(t, it)
	require.Len(t, got, 2)
	require.EqualValues(t, 15, got[0].Vers)
	require.Equal(t, "new", string(got[0].Payload))
	require.EqualValues(t, 14, got[1].Vers)
	require.Equal(t, "old", string(got[1].Payload))
	it.Close()
	require.True(t, pool.Balanced())
}

func TestHorizonSquash(t *testing.T) {
	a := []*base.Statement{{Key: base.Key("1"), Vers: 15, Kind: base.StmtReplace, Payload: []byte("new")}}
	b := []*base.Statement{{Key: base.Key("1"), Vers: 14, Kind: base.StmtReplace, Payload: []byte("old")}}
	it, pool := newScenarioIterator(t, scenarioOpts{horizon: 20}, a, b)
	defer it.Close()

	got := drainAll(t, it)
	require.Len(t, got, 1)
	require.Equal(t, "new", string(got[0].Payload))
	it.Close()
	require.True(t, pool.Balanced())
}

func TestUpsertFoldNotLastLevelWithBase(t *testing.T) {
	a := []*base.Statement{{Key: base.Key("1"), Vers: 18, Kind: base.StmtUpsert, Payload: []byte{1}}}
	b := []*base.Statement{{Key: base.Key("1"), Vers: 10, Kind: base.StmtReplace, Payload: []byte{5}}}
	it, pool := newScenarioIterator(t, scenarioOpts{horizon: 20}, a, b)
	defer it.Close()

	got := drainAll(t, it)
	require.Len(t, got, 1)
	require.Equal(t, base.StmtReplace, got[0].Kind)
	require.EqualValues(t, 6, int8(got[0].Payload[0]))
	it.Close()
	require.True(t, pool.Balanced())
}

func TestUpsertFoldLastLevelNoBase(t *testing.T) {
	a := []*base.Statement{{Key: base.Key("1"), Vers: 18, Kind: base.StmtUpsert, Payload: []byte{1}}}
	it, pool := newScenarioIterator(t, scenarioOpts{horizon: 20, isLastLevel: true}, a)
	defer it.Close()

	got := drainAll(t, it)
	require.Len(t, got, 1)
	require.Equal(t, base.StmtReplace, got[0].Kind)
	require.EqualValues(t, 1, int8(got[0].Payload[0]))
	it.Close()
	require.True(t, pool.Balanced())
}

func TestSecondaryIndexSkip(t *testing.T) {
	a := []*base.Statement{{Key: base.Key("1"), Vers: 15, Kind: base.StmtReplace, ColumnMask: 0b0001, Payload: []byte("x")}}
	it, pool := newScenarioIterator(t, scenarioOpts{horizon: 20, isPrimary: false, indexMask: 0b0010}, a)
	defer it.Close()

	got := drainAll(t, it)
	require.Empty(t, got)
	it.Close()
	require.True(t, pool.Balanced())
}

func TestLastLevelDeleteElision(t *testing.T) {
	a := []*base.Statement{{Key: base.Key("1"), Vers: 15, Kind: base.StmtDelete}}
	it, pool := newScenarioIterator(t, scenarioOpts{horizon: 20, isLastLevel: true}, a)
	defer it.Close()

	got := drainAll(t, it)
	require.Empty(t, got)
	it.Close()
	require.True(t, pool.Balanced())
}

func TestStreamErrorPropagatesAndLeavesIteratorForDestroyOnly(t *testing.T) {
	boom := errors.New("boom")
	pool := teststream.NewPool()
	opts := &Options{
		KeyDef:     testKeyDef(),
		IsPrimary:  true,
		OldestVLSN: 10,
		Pool:       pool,
		Applier:    testApplier(),
	}
	it, err := New(opts)
	require.NoError(t, err)

	// Call 0 primes the source in addSource, call 1 is the step of the
	// first Next, and call 2 (the step of the second Next) fails.
	stmts := []*base.Statement{
		{Key: base.Key("1"), Vers: 5, Kind: base.StmtReplace, Payload: []byte("a")},
		{Key: base.Key("2"), Vers: 5, Kind: base.StmtReplace, Payload: []byte("b")},
	}
	stream := teststream.NewErroring(stmts, true, 2, boom)
	require.NoError(t, it.addSource(stream))

	_, err = it.Next()
	require.NoError(t, err)
	_, err = it.Next()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrStream))

	require.NoError(t, it.Close())
}

func TestEveryRefableStatementAcquiredIsReleasedExactlyOnce(t *testing.T) {
	a := []*base.Statement{
		{Key: base.Key("1"), Vers: 15, Kind: base.StmtReplace, Payload: []byte("a1")},
		{Key: base.Key("2"), Vers: 15, Kind: base.StmtReplace, Payload: []byte("a2")},
	}
	b := []*base.Statement{
		{Key: base.Key("1"), Vers: 10, Kind: base.StmtReplace, Payload: []byte("b1")},
	}
	it, pool := newScenarioIterator(t, scenarioOpts{horizon: 20}, a, b)
	drainAll(t, it)
	require.NoError(t, it.Close())
	require.True(t, pool.Balanced())
	require.Equal(t, 0, pool.Outstanding())
}

// TestMergeInvariantsOverRandomSources exercises the universal invariants a
// correct merge must hold (keys non-decreasing, pool references balanced)
// over randomly generated source sets. Each source is sorted by key
// ascending, version descending, as a Stream's contract requires.
func TestMergeInvariantsOverRandomSources(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 25; trial++ {
		numSources := 1 + rng.Intn(4)
		var sources [][]*base.Statement
		for s := 0; s < numSources; s++ {
			numKeys := rng.Intn(6)
			var stmts []*base.Statement
			for k := 0; k < numKeys; k++ {
				key := base.Key([]byte{byte('a' + rng.Intn(5))})
				stmts = append(stmts, &base.Statement{
					Key:     key,
					Vers:    base.Version(1 + rng.Intn(30)),
					Kind:    base.StmtReplace,
					Payload: []byte{byte(k)},
				})
			}
			sort.Slice(stmts, func(i, j int) bool {
				if c := testKeyDef().Cmp(stmts[i].Key, stmts[j].Key); c != 0 {
					return c < 0
				}
				return stmts[i].Vers > stmts[j].Vers
			})
			sources = append(sources, stmts)
		}

		it, pool := newScenarioIterator(t, scenarioOpts{horizon: 15}, sources...)
		var lastKey base.Key
		first := true
		for {
			s, err := it.Next()
			require.NoError(t, err)
			if s == nil {
				break
			}
			if !first {
				require.LessOrEqual(t, testKeyDef().Cmp(lastKey, s.Key), 0)
			}
			first = false
			lastKey = append(base.Key(nil), s.Key...)
		}
		require.NoError(t, it.Close())
		require.True(t, pool.Balanced())
	}
}
