// SPDX-FileCopyrightText: 2024-Present Datadog, Inc
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"io/fs"
	"os"
	"path/filepath"
)

// OS returns a new instance of the OS filesystem.
func OS() FileSystem {
	return &osFS{}
}

// -----------------------------------------------------------------------------

type osFS struct{}

//nolint:wrapcheck // No need to wrap error
func (osFS) Open(name string) (fs.File, error) {
	return os.Open(filepath.FromSlash(name))
}

//nolint:wrapcheck // No need to wrap error
func (osFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(filepath.FromSlash(name))
}

//nolint:wrapcheck // No need to wrap error
func (osFS) Chmod(name string, mode fs.FileMode) error {
	return os.Chmod(filepath.FromSlash(name), mode)
}
