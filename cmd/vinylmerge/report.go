// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package main

import (
	"fmt"
	"os"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var reportConfig syntheticConfig

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "merge synthetic memory levels and report collected metrics",
	RunE:  runReport,
}

func init() {
	reportConfig.registerFlags(reportCmd.Flags())
}

func runReport(cmd *cobra.Command, args []string) error {
	it, metrics, err := reportConfig.buildIterator(noopPool{})
	if err != nil {
		return err
	}
	defer it.Close()

	var cumulative []float64
	var total float64
	for {
		stmt, err := it.Next()
		if err != nil {
			return err
		}
		if stmt == nil {
			break
		}
		total += float64(len(stmt.Payload))
		cumulative = append(cumulative, total)
	}

	snap := metrics.Snapshot()
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"metric", "value"})
	table.AppendBulk([][]string{
		{"yielded (above horizon)", fmt.Sprint(snap.YieldedAboveHorizon)},
		{"yielded (below horizon)", fmt.Sprint(snap.YieldedBelowHorizon)},
		{"upserts folded", fmt.Sprint(snap.UpsertsFolded)},
		{"tombstones elided", fmt.Sprint(snap.TombstonesElided)},
		{"index updates elided", fmt.Sprint(snap.IndexUpdatesElided)},
		{"sources added", fmt.Sprint(snap.SourcesAdded)},
		{"sources discarded", fmt.Sprint(snap.SourcesDiscarded)},
		{"sources exhausted", fmt.Sprint(snap.SourcesExhausted)},
	})
	table.Render()

	if len(cumulative) > 1 {
		graph := asciigraph.Plot(cumulative, asciigraph.Height(10), asciigraph.Caption("cumulative bytes yielded"))
		fmt.Println(graph)
	}
	return nil
}
