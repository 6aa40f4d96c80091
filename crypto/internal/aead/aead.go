// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package aead wraps AES-256-GCM construction used by the streaming
// pipelines. Unlike the convergent-encryption cipher suites it is adapted
// from, this package derives neither its own sub-keys nor its own nonce:
// the key comes straight from the KDF and the nonce/AAD are derived
// per-chunk by the container package, so the same header authenticates
// every chunk of a file.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// KeyLength is the required AES-256 key size in bytes.
const KeyLength = 32

// New builds an AES-256-GCM cipher.AEAD over key. key must be exactly
// KeyLength bytes.
func New(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("aead: key must be %d bytes, got %d", KeyLength, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aead: unable to initialize block cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aead: unable to initialize GCM mode: %w", err)
	}

	return gcm, nil
}
