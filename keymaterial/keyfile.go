// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package keymaterial builds the key material fed into the KDF from a
// passphrase and an optional keyfile.
package keymaterial

import (
	"crypto/sha256"
	"fmt"
	"io"
)

// MaxKeyfileBytes bounds how much of a keyfile is read and hashed. Files
// larger than this are not rejected; only their first MaxKeyfileBytes bytes
// participate in the digest, matching the behavior containers written by
// earlier gtkrypt versions depend on.
const MaxKeyfileBytes = 65536

// ReadKeyfileDigest reads up to MaxKeyfileBytes from r and returns its
// SHA-256 digest.
func ReadKeyfileDigest(r io.Reader) ([sha256.Size]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(r, MaxKeyfileBytes)); err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("keymaterial: unable to read keyfile: %w", err)
	}

	var digest [sha256.Size]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

// Build concatenates passphrase bytes with an optional keyfile digest to
// produce the key material handed to the KDF. A nil keyfileDigest means no
// keyfile was supplied.
func Build(passphrase []byte, keyfileDigest *[sha256.Size]byte) []byte {
	if keyfileDigest == nil {
		material := make([]byte, len(passphrase))
		copy(material, passphrase)
		return material
	}

	material := make([]byte, 0, len(passphrase)+sha256.Size)
	material = append(material, passphrase...)
	material = append(material, keyfileDigest[:]...)
	return material
}
