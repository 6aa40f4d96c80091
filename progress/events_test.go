// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterProgressLine(t *testing.T) {
	t.Parallel()

	var out, errBuf bytes.Buffer
	e := NewEmitter(&out, &errBuf)

	e.Progress(PhaseEncrypt, 1024, 2048)

	var decoded Event
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &decoded))
	assert.InDelta(t, 0.5, decoded.Progress, 0.0001)
	assert.Equal(t, uint64(1024), decoded.BytesProcessed)
	assert.Equal(t, uint64(2048), decoded.TotalBytes)
	assert.Equal(t, PhaseEncrypt, decoded.Phase)
	assert.Empty(t, errBuf.String())
}

func TestEmitterProgressZeroTotalForcesComplete(t *testing.T) {
	t.Parallel()

	var out, errBuf bytes.Buffer
	e := NewEmitter(&out, &errBuf)

	e.Progress(PhaseKDF, 0, 0)

	var decoded Event
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &decoded))
	assert.Equal(t, 1.0, decoded.Progress)
}

func TestEmitterErrorLine(t *testing.T) {
	t.Parallel()

	var out, errBuf bytes.Buffer
	e := NewEmitter(&out, &errBuf)

	e.Error(ErrorWrongPassphrase, "authentication failed")

	var decoded ErrorEvent
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(errBuf.Bytes()), &decoded))
	assert.Equal(t, ErrorWrongPassphrase, decoded.Error)
	assert.Equal(t, "authentication failed", decoded.Message)
	assert.Empty(t, out.String())
}

func TestEventFieldNames(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(Event{Progress: 0.5, BytesProcessed: 1024, TotalBytes: 2048, Phase: PhaseEncrypt})
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, `"progress":0.5`)
	assert.Contains(t, s, `"bytes_processed":1024`)
	assert.Contains(t, s, `"total_bytes":2048`)
	assert.Contains(t, s, `"phase":"encrypt"`)
}
