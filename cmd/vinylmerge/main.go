// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

// Command vinylmerge drives a vinyl.WriteIterator end to end over
// synthetic sources, restoring a "run a compaction from the command line"
// entry point analogous to pebble's own cmd/pebble compact subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "vinylmerge",
		Short: "drive a vinyl write iterator over synthetic sources",
	}
	root.AddCommand(runCmd, reportCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
