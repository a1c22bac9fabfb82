// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kvengine/vinyl"
	"github.com/kvengine/vinyl/internal/base"
	"github.com/kvengine/vinyl/internal/memlevel"
)

// syntheticConfig controls the shape of the synthetic merge both
// subcommands drive, flags shared across run and report.
type syntheticConfig struct {
	sources    int
	keys       int
	horizon    uint64
	lastLevel  bool
	isPrimary  bool
	indexMask  uint64
	payloadLen int
}

func (c *syntheticConfig) registerFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.sources, "sources", 3, "number of synthetic memory levels")
	fs.IntVar(&c.keys, "keys", 10, "number of distinct keys per level")
	fs.Uint64Var(&c.horizon, "horizon", 100, "oldest visible version (oldest_vlsn)")
	fs.BoolVar(&c.lastLevel, "last-level", false, "treat the output as the last storage level")
	fs.BoolVar(&c.isPrimary, "primary", true, "build the primary index's output")
	fs.Uint64Var(&c.indexMask, "index-mask", 0, "secondary index column mask")
	fs.IntVar(&c.payloadLen, "payload-len", 8, "synthetic payload length in bytes")
}

func keyBytes(k int) base.Key {
	return base.Key([]byte(fmt.Sprintf("key-%08d", k)))
}

// buildSources constructs c.sources memory levels, each containing a
// REPLACE statement for every key, with a distinct version per (source,
// key) pair so the merge exercises version shadowing. Every version is
// above the horizon, so all statements are yielded verbatim and no squash
// runs.
func (c *syntheticConfig) buildSources(kd *base.KeyDef) []*memlevel.Level {
	levels := make([]*memlevel.Level, c.sources)
	for s := 0; s < c.sources; s++ {
		level := memlevel.New(kd)
		for k := 0; k < c.keys; k++ {
			vers := base.Version(uint64(c.horizon) + uint64((s+1)*c.keys-k))
			payload := bytes.Repeat([]byte{byte('a' + s)}, c.payloadLen)
			level.Insert(&base.Statement{
				Key:     keyBytes(k),
				Vers:    vers,
				Kind:    base.StmtReplace,
				Payload: payload,
			})
		}
		levels[s] = level
	}
	return levels
}

func (c *syntheticConfig) buildIterator(pool vinyl.StatementPool) (*vinyl.WriteIterator, *vinyl.Metrics, error) {
	kd := &base.KeyDef{Compare: func(a, b base.Key) int { return bytes.Compare(a, b) }, Name: "synthetic"}
	metrics := vinyl.NewMetrics(nil)
	opts := &vinyl.Options{
		KeyDef:          kd,
		IsPrimary:       c.isPrimary,
		IndexColumnMask: vinyl.ColumnMask(c.indexMask),
		IsLastLevel:     c.lastLevel,
		OldestVLSN:      vinyl.Version(c.horizon),
		Pool:            pool,
		Metrics:         metrics,
	}
	it, err := vinyl.New(opts)
	if err != nil {
		return nil, nil, err
	}
	for _, level := range c.buildSources(kd) {
		if err := it.AddMemory(level); err != nil {
			it.Close()
			return nil, nil, err
		}
	}
	return it, metrics, nil
}
