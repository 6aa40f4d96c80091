// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHeader() *Header {
	h := &Header{
		Version: VersionCurrent,
		KdfID:   KdfArgon2id,
		KdfParams: KdfParams{
			TimeCost:      3,
			MemoryCostKiB: 65536,
			Parallelism:   4,
		},
		Mode:             0o640,
		OriginalFileSize: 12345,
		CiphertextLength: 12345,
	}
	for i := range h.Salt {
		h.Salt[i] = byte(i)
	}
	for i := range h.BaseNonce {
		h.BaseNonce[i] = byte(i + 100)
	}
	return h
}

func TestHeaderRoundtrip(t *testing.T) {
	t.Parallel()

	h := sampleHeader()
	encoded := h.Encode()

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, h.Version, decoded.Version)
	assert.Equal(t, h.KdfID, decoded.KdfID)
	assert.Equal(t, h.KdfParams, decoded.KdfParams)
	assert.Equal(t, h.Salt, decoded.Salt)
	assert.Equal(t, h.BaseNonce, decoded.BaseNonce)
	assert.Equal(t, h.Mode, decoded.Mode)
	assert.Equal(t, h.OriginalFileSize, decoded.OriginalFileSize)
	assert.Equal(t, h.CiphertextLength, decoded.CiphertextLength)
	assert.False(t, decoded.HasFilename)
}

func TestHeaderRoundtripWithFilename(t *testing.T) {
	t.Parallel()

	h := sampleHeader()
	h.Filename = "ledger.csv"
	h.HasFilename = true

	decoded, err := Decode(h.Encode())
	require.NoError(t, err)
	assert.True(t, decoded.HasFilename)
	assert.Equal(t, "ledger.csv", decoded.Filename)
}

func TestHeaderRoundtripV1NoMode(t *testing.T) {
	t.Parallel()

	h := sampleHeader()
	h.Version = VersionLegacy
	h.Mode = 0 // v1 has no mode field

	encoded := h.Encode()
	assert.Len(t, encoded, fixedPrefixLength)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint8(VersionLegacy), decoded.Version)
	assert.Equal(t, uint32(0), decoded.Mode)
}

func TestHeaderDecodeFromReaderRoundtrip(t *testing.T) {
	t.Parallel()

	h := sampleHeader()
	h.Filename = "x.bin"
	h.HasFilename = true
	encoded := h.Encode()

	decoded, raw, err := DecodeFromReader(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, encoded, raw)
	assert.Equal(t, h.Filename, decoded.Filename)
}

func TestHeaderRejectsInvalidMagic(t *testing.T) {
	t.Parallel()

	encoded := sampleHeader().Encode()
	encoded[0] = 'X'

	_, err := Decode(encoded)
	require.Error(t, err)

	var hErr *Error
	require.True(t, errors.As(err, &hErr))
	assert.Equal(t, KindInvalidMagic, hErr.Kind)
}

func TestHeaderRejectsUnsupportedVersion(t *testing.T) {
	t.Parallel()

	h := sampleHeader()
	h.Version = 99
	encoded := h.Encode() // Encode only branches on >= VersionCurrent, so this still emits a v2-shaped buffer

	_, err := Decode(encoded)
	require.Error(t, err)

	var hErr *Error
	require.True(t, errors.As(err, &hErr))
	assert.Equal(t, KindUnsupportedVersion, hErr.Kind)
	assert.Equal(t, 99, hErr.Value)
}

func TestHeaderRejectsUnsupportedKdf(t *testing.T) {
	t.Parallel()

	encoded := sampleHeader().Encode()
	encoded[9] = 2

	_, err := Decode(encoded)
	require.Error(t, err)

	var hErr *Error
	require.True(t, errors.As(err, &hErr))
	assert.Equal(t, KindUnsupportedKdf, hErr.Kind)
}

func TestHeaderRejectsInvalidSaltLength(t *testing.T) {
	t.Parallel()

	encoded := sampleHeader().Encode()
	encoded[19] = 8

	_, err := Decode(encoded)
	require.Error(t, err)

	var hErr *Error
	require.True(t, errors.As(err, &hErr))
	assert.Equal(t, KindInvalidSaltLength, hErr.Kind)
}

func TestHeaderRejectsInvalidNonceLength(t *testing.T) {
	t.Parallel()

	encoded := sampleHeader().Encode()
	encoded[20+SaltLength] = 8

	_, err := Decode(encoded)
	require.Error(t, err)

	var hErr *Error
	require.True(t, errors.As(err, &hErr))
	assert.Equal(t, KindInvalidNonceLength, hErr.Kind)
}

func TestHeaderRejectsInvalidFilenameUTF8(t *testing.T) {
	t.Parallel()

	h := sampleHeader()
	h.HasFilename = true
	h.Filename = "ok"
	encoded := h.Encode()

	// Corrupt the filename bytes in place to invalid UTF-8.
	encoded[aadLength+2] = 0xFF

	_, err := Decode(encoded)
	require.Error(t, err)

	var hErr *Error
	require.True(t, errors.As(err, &hErr))
	assert.Equal(t, KindInvalidFilename, hErr.Kind)
}

func TestHeaderRejectsTooShort(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)

	var hErr *Error
	require.True(t, errors.As(err, &hErr))
	assert.Equal(t, KindTooShort, hErr.Kind)
}

func TestHeaderDecodeFromReaderTruncated(t *testing.T) {
	t.Parallel()

	encoded := sampleHeader().Encode()
	_, _, err := DecodeFromReader(bytes.NewReader(encoded[:fixedPrefixLength-1]))
	require.Error(t, err)

	var hErr *Error
	require.True(t, errors.As(err, &hErr))
	assert.Equal(t, KindTooShort, hErr.Kind)
}

func TestAADLengthIs49(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 49, aadLength)
}

func TestExtractAADMatchesEncodedPrefix(t *testing.T) {
	t.Parallel()

	h := sampleHeader()
	encoded := h.Encode()
	aad := ExtractAAD(encoded)
	assert.Len(t, aad, aadLength)
	assert.Equal(t, encoded[:aadLength], aad)
}

func TestChunkNonceDerivation(t *testing.T) {
	t.Parallel()

	var base [NonceLength]byte
	for i := range base {
		base[i] = byte(i + 1)
	}

	n0 := ChunkNonce(base, 0)
	assert.Equal(t, base, n0, "chunk 0 must reproduce the base nonce unchanged")

	n1 := ChunkNonce(base, 1)
	assert.NotEqual(t, n0, n1)
	// Only the last 4 bytes may differ.
	assert.Equal(t, n0[:8], n1[:8])

	// Deterministic for a given index.
	n1Again := ChunkNonce(base, 1)
	assert.Equal(t, n1, n1Again)
}

func TestChunkAADConcatenation(t *testing.T) {
	t.Parallel()

	headerAAD := []byte{1, 2, 3}
	aad := ChunkAAD(headerAAD, 7)
	require.Len(t, aad, len(headerAAD)+4)
	assert.Equal(t, headerAAD, aad[:len(headerAAD)])
	assert.Equal(t, []byte{0, 0, 0, 7}, aad[len(headerAAD):])
}

func TestHeaderFixedSizeConstants(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 67, fixedPrefixLength)
	assert.Equal(t, 67, Size(VersionLegacy, 0))
	assert.Equal(t, 71, Size(VersionCurrent, 0))
}
