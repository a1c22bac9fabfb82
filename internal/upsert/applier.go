// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Package upsert provides the UpsertApplier collaborator the write
// iterator folds deferred updates through: a pure function, optionally
// named, injected into the iterator at construction so tests can substitute
// a stub that records the fold order.
package upsert

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/kvengine/vinyl/internal/base"
)

// Func folds an UPSERT statement onto an optional base statement for the
// same key, producing a fresh, refable statement. base is nil exactly when
// the caller has determined there is no older data below (the last
// level); in every other case base is the next statement the merge would
// otherwise yield for the same key, which may itself be another UPSERT.
//
// The fold must be associative: applying a chain of upserts in the order
// they appear (newest first) and folding each against the next must equal
// applying the whole chain at once against the eventual base.
type Func func(current, base *base.Statement, kd *base.KeyDef, isPrimary bool) (*base.Statement, error)

// Applier pairs a Func with a name, so the name can be surfaced in
// diagnostics or persisted alongside dumped runs if a caller wants to
// detect a mismatched applier across restarts.
type Applier struct {
	Apply Func
	Name  string
}

// Default is an arithmetic applier: UPSERT payloads carry a signed varint
// delta, REPLACE payloads carry the running int64 value (big-endian), and
// folding an upsert against a base adds the delta to the base's value (or
// to zero, when there is no base). It exists to give the iterator and its
// tests something concrete to exercise without depending on a real
// tuple/field codec, which is out of scope for this core.
var Default = &Applier{Apply: applyDelta, Name: "vinyl.arithmetic"}

func decodeDelta(payload []byte) (int64, error) {
	delta, n := binary.Varint(payload)
	if n <= 0 {
		return 0, errors.Wrapf(base.ErrApply, "malformed upsert delta (%d bytes)", len(payload))
	}
	return delta, nil
}

func decodeValue(payload []byte) (int64, error) {
	if len(payload) != 8 {
		return 0, errors.Wrapf(base.ErrApply, "malformed replace value (%d bytes, want 8)", len(payload))
	}
	return int64(binary.BigEndian.Uint64(payload)), nil
}

func encodeValue(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func encodeDelta(v int64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutVarint(buf, v)
	return buf[:n]
}

// applyDelta implements Func. See Default's doc comment for the payload
// convention.
func applyDelta(current, baseStmt *base.Statement, _ *base.KeyDef, _ bool) (*base.Statement, error) {
	if current == nil || current.Kind != base.StmtUpsert {
		return nil, errors.AssertionFailedf("applyDelta called with non-upsert current statement")
	}
	delta, err := decodeDelta(current.Payload)
	if err != nil {
		return nil, err
	}

	result := &base.Statement{Key: current.Key, Vers: current.Vers}

	switch {
	case baseStmt == nil, baseStmt.Kind == base.StmtDelete:
		// No concrete value to fold onto: the delta becomes the initial
		// value, same as if the row had never existed.
		result.Kind = base.StmtReplace
		result.Payload = encodeValue(delta)

	case baseStmt.Kind == base.StmtUpsert:
		baseDelta, err := decodeDelta(baseStmt.Payload)
		if err != nil {
			return nil, err
		}
		// Two deferred updates fold into a single deferred update; the
		// concrete value isn't known until a REPLACE or the absence of
		// any base is reached further down the merge.
		result.Kind = base.StmtUpsert
		result.Payload = encodeDelta(delta + baseDelta)

	case baseStmt.Kind == base.StmtReplace:
		baseVal, err := decodeValue(baseStmt.Payload)
		if err != nil {
			return nil, err
		}
		result.Kind = base.StmtReplace
		result.Payload = encodeValue(baseVal + delta)

	default:
		return nil, errors.AssertionFailedf("unexpected base statement kind %s", baseStmt.Kind)
	}

	return result, nil
}
