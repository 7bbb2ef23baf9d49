package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePIDFile_WritesCurrentPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")

	cleanup, err := writePIDFile(path)
	require.NoError(t, err)
	defer cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestWritePIDFile_SecondLockFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")

	cleanup, err := writePIDFile(path)
	require.NoError(t, err)
	defer cleanup()

	_, err = writePIDFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestWritePIDFile_CleanupRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")

	cleanup, err := writePIDFile(path)
	require.NoError(t, err)

	cleanup()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWritePIDFile_EmptyPath(t *testing.T) {
	_, err := writePIDFile("")
	assert.Error(t, err)
}

func TestWatchPIDPath_DistinctPerDirectory(t *testing.T) {
	a := watchPIDPath("/home/user/photos")
	b := watchPIDPath("/home/user/videos")

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, watchPIDPath("/home/user/photos"))
	assert.True(t, strings.HasSuffix(a, ".pid"))
}
