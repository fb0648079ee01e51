package main

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyExecutable(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src-binary")
	require.NoError(t, os.WriteFile(src, []byte("fake binary contents"), 0644))

	dest := filepath.Join(dir, "dest-binary")
	require.NoError(t, copyExecutable(src, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "fake binary contents", string(data))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(dest)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	}
}

func TestCopyExecutable_MissingSourceErrors(t *testing.T) {
	dir := t.TempDir()
	err := copyExecutable(filepath.Join(dir, "missing"), filepath.Join(dir, "dest"))
	assert.Error(t, err)
}

func TestDefaultInstallDir_EndsInLocalBin(t *testing.T) {
	dir := defaultInstallDir()
	assert.Equal(t, filepath.Join("bin"), filepath.Base(dir))
}
