// SPDX-FileCopyrightText: 2024-Present Datadog, Inc
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOSFS(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	testFilePath := filepath.Join(tmpDir, "input.dat")
	require.NoError(t, os.WriteFile(testFilePath, []byte("payload"), 0o640))

	sysFs := OS()

	fi, err := sysFs.Stat(testFilePath)
	require.NoError(t, err)
	require.Equal(t, int64(len("payload")), fi.Size())

	f, err := sysFs.Open(testFilePath)
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "payload", string(content))
	require.NoError(t, f.Close())

	require.NoError(t, sysFs.Chmod(testFilePath, 0o600))
	fi2, err := sysFs.Stat(testFilePath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi2.Mode().Perm())
}

func TestOSFS_StatMissing(t *testing.T) {
	t.Parallel()

	sysFs := OS()
	_, err := sysFs.Stat(filepath.Join(t.TempDir(), "missing.dat"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}
