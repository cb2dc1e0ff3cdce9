// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tia/pkg/ux"
)

// Version is the CLI version reported by 'tia version'.
const Version = "1.0.0"

// --- Global Command Variables ---
var (
	flagConfig string // --config: explicit config file path
	flagRoot   string // --root: project root override
	flagOutput string // --output: auto, json, or text
	flagQuiet  bool   // --quiet: suppress log output

	rootCmd = &cobra.Command{
		Use:   "tia",
		Short: "Select the tests affected by a set of changed files",
		Long: `tia maps changed source files onto the test files that could be
affected by them, so a pipeline can run the relevant slice of the
suite instead of everything on every change.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// JSON output must never be interleaved with styling.
			if flagOutput == outputJSONMode {
				ux.SetMode(ux.ModePlain)
			}
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the tia version",
		Run:   runVersion,
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"Config file path (default: tia.yaml in the project root)")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "",
		"Project root to analyze (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagOutput, "output", outputAutoMode,
		"Output format: auto (JSON when piped), json, or text")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false,
		"Suppress log output; results only")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("tia version %s\n", Version)
}
