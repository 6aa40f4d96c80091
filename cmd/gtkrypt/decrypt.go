// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gtkrypt/gtkrypt/pipeline"
	"github.com/gtkrypt/gtkrypt/progress"
)

var (
	decryptInput   string
	decryptOutput  string
	decryptKeyfile string
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt a gtkrypt container",
	Args:  cobra.NoArgs,
	RunE:  runDecrypt,
}

func init() {
	decryptCmd.Flags().StringVar(&decryptInput, "input", "", "path to the container input file")
	decryptCmd.Flags().StringVar(&decryptOutput, "output", "", "path to the plaintext output file")
	decryptCmd.Flags().StringVar(&decryptKeyfile, "keyfile", "", "path to an optional keyfile")
	_ = decryptCmd.MarkFlagRequired("input")
	_ = decryptCmd.MarkFlagRequired("output")
}

func runDecrypt(_ *cobra.Command, _ []string) error {
	passphrase, err := readPassphrase()
	if err != nil {
		emitAndExit(err)
	}

	keyMaterial, err := buildKeyMaterial(passphrase, decryptKeyfile)
	if err != nil {
		emitAndExit(err)
	}

	emitter := progress.NewEmitter(os.Stdout, os.Stderr)

	err = pipeline.Decrypt(pipeline.DecryptOptions{
		InputPath:   decryptInput,
		OutputPath:  decryptOutput,
		KeyMaterial: keyMaterial.Unwrap(),
		Progress:    emitter,
	})
	if err != nil {
		emitAndExit(err)
	}

	return nil
}
