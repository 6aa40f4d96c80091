// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package randomness provides cryptographically secure random byte
// generation used for container salts and nonces.
package randomness

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Bytes generates a new byte slice of the given size read from the system
// CSPRNG.
func Bytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("error generating bytes: %w", err)
	}
	return b, nil
}
