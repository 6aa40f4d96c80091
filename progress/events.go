// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package progress emits the line-delimited JSON events the CLI writes
// while an encrypt or decrypt operation runs: progress lines on an
// arbitrary writer (normally stdout), and a single terminal error event on
// an arbitrary writer (normally stderr).
package progress

import (
	"encoding/json"
	"fmt"
	"io"
)

// Phase names used in ProgressEvent.Phase.
const (
	PhaseKDF     = "kdf"
	PhaseEncrypt = "encrypt"
	PhaseDecrypt = "decrypt"
)

// Error codes used in ErrorEvent.Error, mirroring pipeline.Kind.
const (
	ErrorWrongPassphrase = "wrong_passphrase"
	ErrorCorruptFile     = "corrupt_file"
	ErrorPermission      = "permission_error"
	ErrorInternal        = "internal_error"
)

// Event is a single progress line: how far bytesProcessed out of totalBytes
// a given phase has gotten. Progress is reported as 1.0 when totalBytes is
// zero, since there's nothing left to process.
type Event struct {
	Progress       float64 `json:"progress"`
	BytesProcessed uint64  `json:"bytes_processed"`
	TotalBytes     uint64  `json:"total_bytes"`
	Phase          string  `json:"phase"`
}

// ErrorEvent is the terminal, CLI-facing error description.
type ErrorEvent struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Emitter writes progress and error events as JSON lines to the given
// writers. The zero value is not usable; use NewEmitter.
type Emitter struct {
	out io.Writer
	err io.Writer
}

// NewEmitter returns an Emitter that writes progress lines to out and the
// terminal error event to errw.
func NewEmitter(out, errw io.Writer) *Emitter {
	return &Emitter{out: out, err: errw}
}

// Progress computes the fractional progress for bytesProcessed/totalBytes
// and writes a single JSON line to the emitter's out writer. Write errors
// are silently ignored, matching the fire-and-forget behavior of progress
// reporting: a broken progress pipe must never fail the underlying
// encrypt/decrypt operation.
func (e *Emitter) Progress(phase string, bytesProcessed, totalBytes uint64) {
	progress := 1.0
	if totalBytes > 0 {
		progress = float64(bytesProcessed) / float64(totalBytes)
	}

	event := Event{
		Progress:       progress,
		BytesProcessed: bytesProcessed,
		TotalBytes:     totalBytes,
		Phase:          phase,
	}

	line, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(e.out, "%s\n", line)
}

// Error writes a single terminal error JSON line to the emitter's err
// writer.
func (e *Emitter) Error(errorCode, message string) {
	event := ErrorEvent{Error: errorCode, Message: message}

	line, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(e.err, "%s\n", line)
}
