// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"

	"github.com/awnumar/memguard"

	"github.com/gtkrypt/gtkrypt/crypto/container"
	"github.com/gtkrypt/gtkrypt/crypto/internal/aead"
	"github.com/gtkrypt/gtkrypt/crypto/kdf"
	"github.com/gtkrypt/gtkrypt/internal/atomicfile"
	"github.com/gtkrypt/gtkrypt/progress"
	"github.com/gtkrypt/gtkrypt/vfs"
)

// DecryptOptions configures a Decrypt call.
type DecryptOptions struct {
	InputPath   string
	OutputPath  string
	KeyMaterial []byte

	// FS defaults to vfs.OS() when nil.
	FS vfs.FileSystem
	// Progress defaults to a no-op emitter when nil.
	Progress *progress.Emitter
}

// Decrypt reads an authenticated container from InputPath and writes its
// plaintext to OutputPath. On any error before the output is committed,
// OutputPath is left untouched; a failure to restore the stored mode is
// returned after the plaintext is already in place at OutputPath.
func Decrypt(opts DecryptOptions) error {
	fsys := opts.FS
	if fsys == nil {
		fsys = vfs.OS()
	}
	emitter := opts.Progress
	if emitter == nil {
		emitter = progress.NewEmitter(io.Discard, io.Discard)
	}

	input, err := fsys.Open(opts.InputPath)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return permissionErr(err)
		}
		return internalErr(fmt.Errorf("unable to open input file: %w", err))
	}
	defer input.Close()
	reader := bufio.NewReaderSize(input, container.ChunkSize)

	header, headerBytes, err := container.DecodeFromReader(reader)
	if err != nil {
		return corruptFileErr("%s", err.Error())
	}

	ciphertextLen := header.CiphertextLength
	numChunks := (ciphertextLen + container.ChunkSize - 1) / container.ChunkSize
	if ciphertextLen == 0 {
		numChunks = 0
	}
	if numChunks > math.MaxUint32 {
		return corruptFileErr("container declares %d chunks, exceeding the maximum of %d", numChunks, uint32(math.MaxUint32))
	}

	expectedTotal := uint64(len(headerBytes)) + ciphertextLen + numChunks*container.TagLength

	fi, err := fsys.Stat(opts.InputPath)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return permissionErr(err)
		}
		return internalErr(fmt.Errorf("unable to stat input file: %w", err))
	}
	if actual := uint64(fi.Size()); actual != expectedTotal {
		return corruptFileErr("file size mismatch: expected %d bytes, got %d", expectedTotal, actual)
	}

	headerAAD := container.ExtractAAD(headerBytes)

	emitter.Progress(progress.PhaseKDF, 0, 0)
	derivedKey := kdf.DeriveKey(opts.KeyMaterial, header.Salt[:], kdf.Params{
		TimeCost:      header.KdfParams.TimeCost,
		MemoryCostKiB: header.KdfParams.MemoryCostKiB,
		Parallelism:   header.KdfParams.Parallelism,
	})
	keySlice := derivedKey[:]
	lockedKey := memguard.NewBufferFromBytes(keySlice) // wipes keySlice as a side effect
	defer lockedKey.Destroy()
	emitter.Progress(progress.PhaseKDF, 1, 1)

	cipherAEAD, err := aead.New(lockedKey.Bytes())
	if err != nil {
		return internalErr(fmt.Errorf("unable to initialize cipher: %w", err))
	}

	writer, err := atomicfile.Create(opts.OutputPath)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return permissionErr(err)
		}
		return internalErr(fmt.Errorf("unable to create output file: %w", err))
	}
	defer writer.Abort() //nolint:errcheck // best-effort cleanup; Commit supersedes this on success

	emitter.Progress(progress.PhaseDecrypt, 0, ciphertextLen)

	chunkBuf := make([]byte, container.ChunkSize+container.TagLength)
	var bytesProcessed uint64
	for chunkIndex := uint32(0); bytesProcessed < ciphertextLen; chunkIndex++ {
		remaining := ciphertextLen - bytesProcessed
		thisChunkCtLen := uint64(container.ChunkSize)
		if remaining < thisChunkCtLen {
			thisChunkCtLen = remaining
		}
		sealedLen := thisChunkCtLen + container.TagLength

		if _, err := io.ReadFull(reader, chunkBuf[:sealedLen]); err != nil {
			return corruptFileErr("file is truncated at chunk %d", chunkIndex)
		}

		nonce := container.ChunkNonce(header.BaseNonce, chunkIndex)
		aad := container.ChunkAAD(headerAAD, chunkIndex)

		plaintext, err := cipherAEAD.Open(nil, nonce[:], chunkBuf[:sealedLen], aad)
		if err != nil {
			return wrongPassphraseErr(err)
		}

		if _, err := writer.Write(plaintext); err != nil {
			return internalErr(fmt.Errorf("unable to write plaintext chunk: %w", err))
		}

		bytesProcessed += thisChunkCtLen
		emitter.Progress(progress.PhaseDecrypt, bytesProcessed, ciphertextLen)
	}

	if err := writer.Commit(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return permissionErr(err)
		}
		return internalErr(fmt.Errorf("unable to finalize output file: %w", err))
	}

	if header.Mode != 0 {
		if err := fsys.Chmod(opts.OutputPath, fileModeFromPOSIX(header.Mode)); err != nil {
			return internalErr(fmt.Errorf("unable to restore file permissions: %w", err))
		}
	}

	emitter.Progress(progress.PhaseDecrypt, ciphertextLen, ciphertextLen)
	return nil
}
