// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package atomicfile provides a streaming, atomic destination-file writer:
// content is written incrementally to a temporary file next to the target,
// then fsync'd and renamed into place. Any error before Commit leaves the
// destination untouched.
package atomicfile

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gtkrypt/gtkrypt/log"
)

// Writer is a single-use atomic destination-file writer. Call Write
// repeatedly, then exactly one of Commit or Abort.
type Writer struct {
	destination string
	tempFile    *os.File
	buffered    *bufio.Writer
	committed   bool
	aborted     bool
}

// Create opens a named temporary file next to destination, ready to be
// streamed into via Write. The temporary file is created with 0o600
// permissions; Commit will reconcile the mode with any pre-existing
// destination file.
func Create(destination string) (*Writer, error) {
	dir, file := filepath.Split(destination)
	dir = filepath.Clean(dir)

	f, err := os.CreateTemp(dir, file)
	if err != nil {
		return nil, fmt.Errorf("atomicfile: unable to create temporary file: %w", err)
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("atomicfile: unable to set temporary file mode: %w", err)
	}

	return &Writer{
		destination: destination,
		tempFile:    f,
		buffered:    bufio.NewWriter(f),
	}, nil
}

// Write appends p to the temporary file's buffered content.
func (w *Writer) Write(p []byte) (int, error) {
	return w.buffered.Write(p)
}

// Name returns the path of the underlying temporary file.
func (w *Writer) Name() string {
	return w.tempFile.Name()
}

// Commit flushes, fsyncs the temporary file and its directory, matches the
// destination's existing file mode (if any), and atomically renames the
// temporary file into place.
func (w *Writer) Commit() error {
	if err := w.buffered.Flush(); err != nil {
		_ = w.Abort()
		return fmt.Errorf("atomicfile: unable to flush buffered writer: %w", err)
	}
	if err := w.tempFile.Sync(); err != nil {
		_ = w.Abort()
		return fmt.Errorf("atomicfile: unable to sync temporary file: %w", err)
	}
	if err := w.tempFile.Close(); err != nil {
		_ = os.Remove(w.tempFile.Name())
		return fmt.Errorf("atomicfile: unable to close temporary file: %w", err)
	}

	tmpName, err := filepath.EvalSymlinks(w.tempFile.Name())
	if err != nil {
		_ = os.Remove(w.tempFile.Name())
		return fmt.Errorf("atomicfile: unable to evaluate %q symlink: %w", w.tempFile.Name(), err)
	}

	if err := syncDir(filepath.Dir(tmpName)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("atomicfile: unable to sync directory: %w", err)
	}

	if err := w.matchDestinationMode(tmpName); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, w.destination); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("atomicfile: unable to rename temporary file into place: %w", err)
	}

	w.committed = true
	return nil
}

// Abort closes and removes the temporary file, leaving the destination
// untouched. It is safe to call after a failed Write, and safe to call more
// than once.
func (w *Writer) Abort() error {
	if w.committed || w.aborted {
		return nil
	}
	w.aborted = true

	if err := w.tempFile.Close(); err != nil && !errors.Is(err, fs.ErrClosed) {
		log.Error(err).Messagef("unable to close temporary file %q", w.tempFile.Name())
	}
	if err := os.Remove(w.tempFile.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error(err).Messagef("unable to remove temporary file %q", w.tempFile.Name())
		return fmt.Errorf("atomicfile: unable to remove temporary file: %w", err)
	}
	return nil
}

func (w *Writer) matchDestinationMode(tmpName string) error {
	tmpFi, err := os.Stat(tmpName)
	if err != nil {
		return fmt.Errorf("atomicfile: unable to stat temporary file: %w", err)
	}

	fi, err := os.Stat(w.destination)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("atomicfile: unable to stat destination file: %w", err)
	}

	if tmpFi.Mode() != fi.Mode() {
		if err := os.Chmod(tmpName, fi.Mode()); err != nil {
			return fmt.Errorf("atomicfile: unable to apply destination file mode: %w", err)
		}
	}
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("unable to open directory %q: %w", dir, err)
	}
	defer f.Close()

	if err := f.Sync(); err != nil {
		return fmt.Errorf("unable to sync directory %q: %w", dir, err)
	}
	return nil
}
