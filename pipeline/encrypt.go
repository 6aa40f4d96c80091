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

	"github.com/gtkrypt/gtkrypt/crypto/internal/aead"

	"github.com/gtkrypt/gtkrypt/crypto/container"
	"github.com/gtkrypt/gtkrypt/crypto/kdf"
	"github.com/gtkrypt/gtkrypt/generator/randomness"
	"github.com/gtkrypt/gtkrypt/internal/atomicfile"
	"github.com/gtkrypt/gtkrypt/progress"
	"github.com/gtkrypt/gtkrypt/vfs"
)

// EncryptOptions configures an Encrypt call. KeyMaterial is the already
// combined passphrase (and, if present, keyfile digest) bytes; this
// package doesn't know or care where it came from.
type EncryptOptions struct {
	InputPath     string
	OutputPath    string
	KeyMaterial   []byte
	KDFParams     kdf.Params
	StoreFilename bool

	// FS defaults to vfs.OS() when nil.
	FS vfs.FileSystem
	// Progress defaults to a no-op emitter when nil.
	Progress *progress.Emitter
}

// Encrypt reads InputPath, and writes an authenticated container to
// OutputPath. On any error, OutputPath is left untouched.
func Encrypt(opts EncryptOptions) error {
	fsys := opts.FS
	if fsys == nil {
		fsys = vfs.OS()
	}
	emitter := opts.Progress
	if emitter == nil {
		emitter = progress.NewEmitter(io.Discard, io.Discard)
	}

	info, err := fsys.Stat(opts.InputPath)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return permissionErr(err)
		}
		return internalErr(fmt.Errorf("unable to stat input file: %w", err))
	}
	inputSize := uint64(info.Size())

	numChunks := (inputSize + container.ChunkSize - 1) / container.ChunkSize
	if inputSize == 0 {
		numChunks = 0
	}
	if numChunks > math.MaxUint32 {
		return internalErr(fmt.Errorf("input file is too large: %d chunks exceeds the maximum of %d", numChunks, uint32(math.MaxUint32)))
	}

	salt, err := randomness.Bytes(container.SaltLength)
	if err != nil {
		return internalErr(fmt.Errorf("unable to generate salt: %w", err))
	}
	baseNonceBytes, err := randomness.Bytes(container.NonceLength)
	if err != nil {
		return internalErr(fmt.Errorf("unable to generate nonce: %w", err))
	}

	emitter.Progress(progress.PhaseKDF, 0, 0)
	derivedKey := kdf.DeriveKey(opts.KeyMaterial, salt, opts.KDFParams)
	keySlice := derivedKey[:]
	lockedKey := memguard.NewBufferFromBytes(keySlice) // wipes keySlice as a side effect
	defer lockedKey.Destroy()
	emitter.Progress(progress.PhaseKDF, 1, 1)

	cipherAEAD, err := aead.New(lockedKey.Bytes())
	if err != nil {
		return internalErr(fmt.Errorf("unable to initialize cipher: %w", err))
	}

	header := &container.Header{
		Version: container.VersionCurrent,
		KdfID:   container.KdfArgon2id,
		KdfParams: container.KdfParams{
			TimeCost:      opts.KDFParams.TimeCost,
			MemoryCostKiB: opts.KDFParams.MemoryCostKiB,
			Parallelism:   opts.KDFParams.Parallelism,
		},
		Mode:             posixMode(info),
		OriginalFileSize: inputSize,
		CiphertextLength: inputSize,
	}
	copy(header.Salt[:], salt)
	copy(header.BaseNonce[:], baseNonceBytes)
	if opts.StoreFilename {
		header.HasFilename = true
		header.Filename = fsBaseName(opts.InputPath)
	}

	headerBytes := header.Encode()
	headerAAD := container.ExtractAAD(headerBytes)

	input, err := fsys.Open(opts.InputPath)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return permissionErr(err)
		}
		return internalErr(fmt.Errorf("unable to open input file: %w", err))
	}
	defer input.Close()
	reader := bufio.NewReaderSize(input, container.ChunkSize)

	writer, err := atomicfile.Create(opts.OutputPath)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return permissionErr(err)
		}
		return internalErr(fmt.Errorf("unable to create output file: %w", err))
	}
	defer writer.Abort() //nolint:errcheck // best-effort cleanup; Commit supersedes this on success

	if _, err := writer.Write(headerBytes); err != nil {
		return internalErr(fmt.Errorf("unable to write header: %w", err))
	}

	chunk := make([]byte, container.ChunkSize)
	var bytesProcessed uint64
	for chunkIndex := uint32(0); bytesProcessed < inputSize; chunkIndex++ {
		remaining := inputSize - bytesProcessed
		thisChunkLen := uint64(container.ChunkSize)
		if remaining < thisChunkLen {
			thisChunkLen = remaining
		}

		if _, err := io.ReadFull(reader, chunk[:thisChunkLen]); err != nil {
			return internalErr(fmt.Errorf("unable to read input file: %w", err))
		}

		nonce := container.ChunkNonce(header.BaseNonce, chunkIndex)
		aad := container.ChunkAAD(headerAAD, chunkIndex)
		sealed := cipherAEAD.Seal(nil, nonce[:], chunk[:thisChunkLen], aad)

		if _, err := writer.Write(sealed); err != nil {
			return internalErr(fmt.Errorf("unable to write ciphertext chunk: %w", err))
		}

		bytesProcessed += thisChunkLen
		emitter.Progress(progress.PhaseEncrypt, bytesProcessed, inputSize)
	}

	if err := writer.Commit(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return permissionErr(err)
		}
		return internalErr(fmt.Errorf("unable to finalize output file: %w", err))
	}

	emitter.Progress(progress.PhaseEncrypt, inputSize, inputSize)
	return nil
}

// posixMode reconstructs a raw POSIX mode_t (including setuid/setgid/sticky
// bits) from an fs.FileInfo, masked to the 07777 range the container
// format persists.
func posixMode(info fs.FileInfo) uint32 {
	mode := uint32(info.Mode().Perm())
	if info.Mode()&fs.ModeSetuid != 0 {
		mode |= 0o4000
	}
	if info.Mode()&fs.ModeSetgid != 0 {
		mode |= 0o2000
	}
	if info.Mode()&fs.ModeSticky != 0 {
		mode |= 0o1000
	}
	return mode
}

// fileModeFromPOSIX is the inverse of posixMode, used when restoring a
// decrypted file's permissions.
func fileModeFromPOSIX(mode uint32) fs.FileMode {
	perm := fs.FileMode(mode & 0o777)
	if mode&0o4000 != 0 {
		perm |= fs.ModeSetuid
	}
	if mode&0o2000 != 0 {
		perm |= fs.ModeSetgid
	}
	if mode&0o1000 != 0 {
		perm |= fs.ModeSticky
	}
	return perm
}

func fsBaseName(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' && path[i] != '\\' {
		i--
	}
	return path[i+1:]
}
