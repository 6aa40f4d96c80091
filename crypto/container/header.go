// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package container implements the gtkrypt container format: a versioned
// binary header plus the nonce/AAD derivation rules binding each ciphertext
// chunk to its header and its position in the stream.
//
// The on-disk layout and the AAD/nonce derivation are fixed by the format;
// any deviation breaks authentication against containers written by other
// implementations of the same format, so field order, widths and the AAD
// window below are not implementation details up for refactoring.
package container

import (
	"encoding/binary"
	"io"
	"unicode/utf8"
)

// Magic identifies a gtkrypt container file.
var Magic = [8]byte{'G', 'T', 'K', 'R', 'Y', 'P', 'T', 0}

const (
	// KdfArgon2id is the only supported KDF identifier.
	KdfArgon2id uint8 = 1

	// SaltLength is the required salt length in bytes.
	SaltLength = 16
	// NonceLength is the required base nonce length in bytes, matching the
	// AES-256-GCM nonce width.
	NonceLength = 12
	// TagLength is the AES-256-GCM authentication tag length in bytes.
	TagLength = 16
	// ChunkSize is the plaintext chunk size used by the streaming pipeline.
	ChunkSize = 65536

	// VersionLegacy containers lack the mode field and are accepted for
	// decryption only; new containers are always written as VersionCurrent.
	VersionLegacy = 1
	// VersionCurrent is the version written by the encrypt pipeline.
	VersionCurrent = 2

	// aadLength is the size of the authenticated header prefix: magic
	// through base_nonce inclusive.
	aadLength = 8 + 1 + 1 + 4 + 4 + 1 + 1 + SaltLength + 1 + NonceLength // 49

	// fixedPrefixLength is the smallest possible header read: a v1 header
	// with no filename (magic..nonce, filename_len=0, file_size, ciphertext_len).
	fixedPrefixLength = aadLength + 2 + 8 + 8 // 67

	// v1TrailerLength and v2TrailerLength are the byte counts following the
	// filename field for each version.
	v1TrailerLength = 8 + 8      // file_size + ciphertext_len
	v2TrailerLength = 4 + 8 + 8  // mode + file_size + ciphertext_len
)

// KdfParams carries the persisted Argon2id cost parameters.
type KdfParams struct {
	TimeCost      uint32
	MemoryCostKiB uint32
	Parallelism   uint8
}

// Header is the parsed, in-memory representation of a container header.
type Header struct {
	Version          uint8
	KdfID            uint8
	KdfParams        KdfParams
	Salt             [SaltLength]byte
	BaseNonce        [NonceLength]byte
	Filename         string // empty means absent
	HasFilename      bool
	Mode             uint32 // 0 means unknown; only meaningful for v2
	OriginalFileSize uint64
	CiphertextLength uint64
}

// Encode serializes the header using the canonical on-disk byte layout.
// The caller is responsible for populating Header with valid field values;
// Encode does not itself validate salt/nonce lengths or the KDF id.
func (h *Header) Encode() []byte {
	filenameBytes := []byte(h.Filename)
	if !h.HasFilename {
		filenameBytes = nil
	}

	size := fixedPrefixLength + len(filenameBytes)
	if h.Version >= VersionCurrent {
		size += 4 // mode
	}
	buf := make([]byte, 0, size)

	buf = append(buf, Magic[:]...)
	buf = append(buf, h.Version)
	buf = append(buf, h.KdfID)
	buf = appendU32(buf, h.KdfParams.TimeCost)
	buf = appendU32(buf, h.KdfParams.MemoryCostKiB)
	buf = append(buf, h.KdfParams.Parallelism)
	buf = append(buf, SaltLength)
	buf = append(buf, h.Salt[:]...)
	buf = append(buf, NonceLength)
	buf = append(buf, h.BaseNonce[:]...)
	// --- end of AAD region (offset 49) ---

	buf = appendU16(buf, uint16(len(filenameBytes)))
	buf = append(buf, filenameBytes...)

	if h.Version >= VersionCurrent {
		buf = appendU32(buf, h.Mode)
	}

	buf = appendU64(buf, h.OriginalFileSize)
	buf = appendU64(buf, h.CiphertextLength)

	return buf
}

// ExtractAAD returns the authenticated header prefix (bytes [0, 49)) from
// encoded header bytes. The caller must pass at least aadLength bytes.
func ExtractAAD(headerBytes []byte) []byte {
	return headerBytes[:aadLength]
}

// ChunkNonce derives the per-chunk AES-256-GCM nonce by XOR-ing the
// big-endian chunk index into the low 4 bytes of the base nonce. The high 8
// bytes of baseNonce stay fully random; uniqueness within a file follows
// from the chunk index being unique.
func ChunkNonce(baseNonce [NonceLength]byte, chunkIndex uint32) [NonceLength]byte {
	nonce := baseNonce
	var counter [4]byte
	binary.BigEndian.PutUint32(counter[:], chunkIndex)
	for i := range counter {
		nonce[8+i] ^= counter[i]
	}
	return nonce
}

// ChunkAAD builds the per-chunk additional authenticated data by appending
// the big-endian chunk index to the header AAD. This binds each chunk's
// ciphertext to its header and to its position in the stream.
func ChunkAAD(headerAAD []byte, chunkIndex uint32) []byte {
	aad := make([]byte, len(headerAAD)+4)
	copy(aad, headerAAD)
	binary.BigEndian.PutUint32(aad[len(headerAAD):], chunkIndex)
	return aad
}

// DecodeFromReader reads and parses a container header from r without
// loading the rest of the file into memory. It returns the parsed header
// and the raw header bytes consumed (needed to re-derive the AAD).
//
// Reading happens in two phases to avoid over-reading: the fixed prefix
// first, then whatever the version and filename length say remains.
func DecodeFromReader(r io.Reader) (*Header, []byte, error) {
	buf := make([]byte, fixedPrefixLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, nil, &Error{Kind: KindTooShort}
	}

	version := buf[8]
	filenameLen := int(binary.BigEndian.Uint16(buf[aadLength : aadLength+2]))

	total := fixedPrefixLength + filenameLen
	if version >= VersionCurrent {
		total += 4
	}

	if extra := total - len(buf); extra > 0 {
		more := make([]byte, extra)
		if _, err := io.ReadFull(r, more); err != nil {
			return nil, nil, &Error{Kind: KindTooShort}
		}
		buf = append(buf, more...)
	}

	h, err := Decode(buf)
	if err != nil {
		return nil, nil, err
	}
	return h, buf, nil
}

// Decode parses a complete, in-memory header buffer.
func Decode(data []byte) (*Header, error) {
	if len(data) < fixedPrefixLength {
		return nil, &Error{Kind: KindTooShort}
	}
	if string(data[0:8]) != string(Magic[:]) {
		return nil, &Error{Kind: KindInvalidMagic}
	}

	version := data[8]
	if version != VersionLegacy && version != VersionCurrent {
		return nil, &Error{Kind: KindUnsupportedVersion, Value: int(version)}
	}

	kdfID := data[9]
	if kdfID != KdfArgon2id {
		return nil, &Error{Kind: KindUnsupportedKdf, Value: int(kdfID)}
	}

	timeCost := binary.BigEndian.Uint32(data[10:14])
	memoryCostKiB := binary.BigEndian.Uint32(data[14:18])
	parallelism := data[18]

	saltLen := int(data[19])
	if saltLen != SaltLength {
		return nil, &Error{Kind: KindInvalidSaltLength, Value: saltLen}
	}
	var salt [SaltLength]byte
	copy(salt[:], data[20:20+SaltLength])

	nonceOffset := 20 + SaltLength
	nonceLen := int(data[nonceOffset])
	if nonceLen != NonceLength {
		return nil, &Error{Kind: KindInvalidNonceLength, Value: nonceLen}
	}
	var nonce [NonceLength]byte
	copy(nonce[:], data[nonceOffset+1:nonceOffset+1+NonceLength])

	filenameLenOffset := nonceOffset + 1 + NonceLength // == aadLength
	filenameLen := int(binary.BigEndian.Uint16(data[filenameLenOffset : filenameLenOffset+2]))
	filenameOffset := filenameLenOffset + 2

	trailerLen := v1TrailerLength
	if version >= VersionCurrent {
		trailerLen = v2TrailerLength
	}
	if len(data) < filenameOffset+filenameLen+trailerLen {
		return nil, &Error{Kind: KindTooShort}
	}

	var filename string
	hasFilename := filenameLen > 0
	if hasFilename {
		raw := data[filenameOffset : filenameOffset+filenameLen]
		if !utf8.Valid(raw) {
			return nil, &Error{Kind: KindInvalidFilename}
		}
		filename = string(raw)
	}

	offset := filenameOffset + filenameLen

	var mode uint32
	if version >= VersionCurrent {
		mode = binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
	}

	originalSize := binary.BigEndian.Uint64(data[offset : offset+8])
	ciphertextLen := binary.BigEndian.Uint64(data[offset+8 : offset+16])

	return &Header{
		Version: version,
		KdfID:   kdfID,
		KdfParams: KdfParams{
			TimeCost:      timeCost,
			MemoryCostKiB: memoryCostKiB,
			Parallelism:   parallelism,
		},
		Salt:             salt,
		BaseNonce:        nonce,
		Filename:         filename,
		HasFilename:      hasFilename,
		Mode:             mode,
		OriginalFileSize: originalSize,
		CiphertextLength: ciphertextLen,
	}, nil
}

// Size returns the encoded size of the header in bytes, for a given
// version and optional filename length.
func Size(version uint8, filenameLen int) int {
	size := fixedPrefixLength + filenameLen
	if version >= VersionCurrent {
		size += 4
	}
	return size
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
