// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/gtkrypt/gtkrypt/keymaterial"
	"github.com/gtkrypt/gtkrypt/pipeline"
	"github.com/gtkrypt/gtkrypt/progress"
	"github.com/gtkrypt/gtkrypt/value"
)

// exitCodeForErr maps a pipeline error kind to the process exit code. 0
// (success) never reaches this function; main only calls it when
// rootCmd.Execute returns an error.
func exitCodeForErr(err error) int {
	var pErr *pipeline.Error
	if !errors.As(err, &pErr) {
		return 10
	}
	switch pErr.Kind {
	case pipeline.KindWrongPassphrase:
		return 1
	case pipeline.KindCorruptFile:
		return 2
	case pipeline.KindPermission:
		return 3
	default:
		return 10
	}
}

// emitAndExit reports a terminal pipeline error as a stderr JSON event and
// exits the process with the matching code.
func emitAndExit(err error) {
	emitter := progress.NewEmitter(os.Stdout, os.Stderr)

	var pErr *pipeline.Error
	if !errors.As(err, &pErr) {
		emitter.Error(progress.ErrorInternal, err.Error())
		os.Exit(10)
	}

	code := 10
	wireCode := progress.ErrorInternal
	switch pErr.Kind {
	case pipeline.KindWrongPassphrase:
		code, wireCode = 1, progress.ErrorWrongPassphrase
	case pipeline.KindCorruptFile:
		code, wireCode = 2, progress.ErrorCorruptFile
	case pipeline.KindPermission:
		code, wireCode = 3, progress.ErrorPermission
	}

	emitter.Error(wireCode, pErr.Message)
	os.Exit(code)
}

// readPassphrase reads a single line from stdin, stripping the trailing
// newline (and an optional preceding carriage return), and rejects an
// empty result.
func readPassphrase() (value.Redacted[[]byte], error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return value.Redacted[[]byte]{}, fmt.Errorf("unable to read passphrase: %w", err)
	}

	line = trimLineEnding(line)
	if line == "" {
		return value.Redacted[[]byte]{}, errors.New("passphrase must not be empty")
	}

	return value.AsRedacted([]byte(line)), nil
}

func trimLineEnding(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
		if n := len(s); n > 0 && s[n-1] == '\r' {
			s = s[:n-1]
		}
	}
	return s
}

// buildKeyMaterial reads and hashes the optional keyfile, then concatenates
// the passphrase with its digest.
func buildKeyMaterial(passphrase value.Redacted[[]byte], keyfilePath string) (value.Redacted[[]byte], error) {
	if keyfilePath == "" {
		return value.AsRedacted(keymaterial.Build(passphrase.Unwrap(), nil)), nil
	}

	f, err := os.Open(keyfilePath)
	if err != nil {
		return value.Redacted[[]byte]{}, fmt.Errorf("unable to open keyfile: %w", err)
	}
	defer f.Close()

	digest, err := keymaterial.ReadKeyfileDigest(f)
	if err != nil {
		return value.Redacted[[]byte]{}, err
	}

	return value.AsRedacted(keymaterial.Build(passphrase.Unwrap(), &digest)), nil
}
