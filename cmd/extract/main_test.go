package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/solarbill-ai-platform/internal/extraction"
)

const billText = `CEMIG DISTRIBUICAO S.A.
CLIENTE: MARIA SILVA SANTOS
TOTAL A PAGAR: R$ 387,45
VENCIMENTO: 15/03/2025`

func TestExtractFromStdin(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(billText), &out)
	cmd.SetArgs([]string{"--today", "2025-03-01", "--compact"})
	require.NoError(t, cmd.Execute())

	var report map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "387.45", report["total_amount"])
	assert.Equal(t, 1, strings.Count(out.String(), "\n"), "compact output is one line")
}

func TestExtractFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bill.txt")
	require.NoError(t, os.WriteFile(path, []byte(billText), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(""), &out)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "\n  \"", "default output is indented")
}

func TestExtractRejectsBinaryInput(t *testing.T) {
	cmd := newRootCmd(strings.NewReader("R$ 10,00\x00"), &bytes.Buffer{})
	cmd.SetArgs(nil)
	err := cmd.Execute()

	var inputErr *extraction.InputError
	require.True(t, errors.As(err, &inputErr), "got %v", err)
}

func TestExtractRejectsBadDate(t *testing.T) {
	cmd := newRootCmd(strings.NewReader(billText), &bytes.Buffer{})
	cmd.SetArgs([]string{"--today", "15/03/2025"})
	assert.Error(t, cmd.Execute())
}
