// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package kdf derives the container's 32-byte symmetric key from a
// passphrase (or passphrase + keyfile material) using Argon2id.
package kdf

import "golang.org/x/crypto/argon2"

// KeyLength is the size in bytes of the derived symmetric key.
const KeyLength = 32

// Params carries the Argon2id cost parameters. These are persisted in the
// container header so a file can be decrypted without out-of-band
// knowledge of how it was derived.
type Params struct {
	TimeCost      uint32
	MemoryCostKiB uint32
	Parallelism   uint8
}

// Balanced is the default cost preset for the CLI's encrypt flags. The
// encrypt pipeline itself uses EncryptOptions.KDFParams as given and does
// not fall back to Balanced.
var Balanced = Params{
	TimeCost:      3,
	MemoryCostKiB: 65536,
	Parallelism:   4,
}

// DeriveKey runs Argon2id over keyMaterial and salt with the given cost
// parameters, returning a fixed-size 32-byte key suitable for AES-256-GCM.
//
// salt must be container.SaltLength bytes; this package doesn't import
// container to avoid a dependency cycle, so the caller is responsible for
// passing a correctly sized salt.
func DeriveKey(keyMaterial, salt []byte, params Params) [KeyLength]byte {
	derived := argon2.IDKey(keyMaterial, salt, params.TimeCost, params.MemoryCostKiB, params.Parallelism, KeyLength)

	var key [KeyLength]byte
	copy(key[:], derived)
	return key
}
