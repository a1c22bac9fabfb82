// Copyright 2024 The Vinyl Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runConfig syntheticConfig

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "merge synthetic memory levels and print the yielded statements",
	RunE:  runRun,
}

func init() {
	runConfig.registerFlags(runCmd.Flags())
}

func runRun(cmd *cobra.Command, args []string) error {
	it, _, err := runConfig.buildIterator(noopPool{})
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		stmt, err := it.Next()
		if err != nil {
			return err
		}
		if stmt == nil {
			break
		}
		fmt.Printf("%s\n", stmt)
	}
	return nil
}
