// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command gtkrypt encrypts and decrypts files into gtkrypt's authenticated
// container format.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gtkrypt",
	Short: "Authenticated file encryption",
	Long:  `gtkrypt converts files into an authenticated, self-describing container and back.`,
}

func init() {
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeForErr(err))
	}
}
