package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCommandStdoutEmptyCommandReturnsStdin(t *testing.T) {
	r, err := openCommandStdout("")
	require.NoError(t, err)
	assert.Equal(t, os.Stdin, r)
}

func TestOpenCommandStdoutSpawnsAndReadsCommandOutput(t *testing.T) {
	r, err := openCommandStdout("printf hello")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestOpenCommandStdoutCloseReapsProcess(t *testing.T) {
	r, err := openCommandStdout("sleep 5")
	require.NoError(t, err)
	assert.NoError(t, r.Close())
}
