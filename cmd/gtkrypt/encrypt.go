// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gtkrypt/gtkrypt/crypto/kdf"
	"github.com/gtkrypt/gtkrypt/pipeline"
	"github.com/gtkrypt/gtkrypt/progress"
)

var (
	encryptInput         string
	encryptOutput        string
	encryptTimeCost      uint32
	encryptMemoryCostKiB uint32
	encryptParallelism   uint8
	encryptStoreFilename bool
	encryptKeyfile       string
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a file into a gtkrypt container",
	Args:  cobra.NoArgs,
	RunE:  runEncrypt,
}

func init() {
	encryptCmd.Flags().StringVar(&encryptInput, "input", "", "path to the plaintext input file")
	encryptCmd.Flags().StringVar(&encryptOutput, "output", "", "path to the container output file")
	encryptCmd.Flags().Uint32Var(&encryptTimeCost, "time-cost", kdf.Balanced.TimeCost, "Argon2id time cost")
	encryptCmd.Flags().Uint32Var(&encryptMemoryCostKiB, "memory-cost", kdf.Balanced.MemoryCostKiB, "Argon2id memory cost in KiB")
	encryptCmd.Flags().Uint8Var(&encryptParallelism, "parallelism", kdf.Balanced.Parallelism, "Argon2id parallelism")
	encryptCmd.Flags().BoolVar(&encryptStoreFilename, "store-filename", false, "store the original filename in the container header")
	encryptCmd.Flags().StringVar(&encryptKeyfile, "keyfile", "", "path to an optional keyfile")
	_ = encryptCmd.MarkFlagRequired("input")
	_ = encryptCmd.MarkFlagRequired("output")
}

func runEncrypt(_ *cobra.Command, _ []string) error {
	passphrase, err := readPassphrase()
	if err != nil {
		emitAndExit(err)
	}

	keyMaterial, err := buildKeyMaterial(passphrase, encryptKeyfile)
	if err != nil {
		emitAndExit(err)
	}

	emitter := progress.NewEmitter(os.Stdout, os.Stderr)

	err = pipeline.Encrypt(pipeline.EncryptOptions{
		InputPath:   encryptInput,
		OutputPath:  encryptOutput,
		KeyMaterial: keyMaterial.Unwrap(),
		KDFParams: kdf.Params{
			TimeCost:      encryptTimeCost,
			MemoryCostKiB: encryptMemoryCostKiB,
			Parallelism:   encryptParallelism,
		},
		StoreFilename: encryptStoreFilename,
		Progress:      emitter,
	})
	if err != nil {
		emitAndExit(err)
	}

	return nil
}
