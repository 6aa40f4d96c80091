// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package vfs

import "io/fs"

// FileSystem is the minimal filesystem surface the encrypt/decrypt
// pipelines depend on: stat an input path, open an input file for
// reading, and restore a decrypted file's permissions.
type FileSystem interface {
	fs.FS
	fs.StatFS

	// Chmod changes the file mode of the given path.
	Chmod(name string, mode fs.FileMode) error
}
