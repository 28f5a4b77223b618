package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureSubdDir_CreatesDirectoryInCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureSubdDir("", "journal")
	require.NoError(t, err)

	want := filepath.Join(tmp, "journal")
	gotEval, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	wantEval, err := filepath.EvalSymlinks(want)
	require.NoError(t, err)
	require.Equal(t, wantEval, gotEval)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureSubdDir_WithBase(t *testing.T) {
	tmp := t.TempDir()

	first, err := EnsureSubdDir(tmp, ".helix")
	require.NoError(t, err)

	second, err := EnsureSubdDir(tmp, ".helix")
	require.NoError(t, err)

	require.Equal(t, filepath.Join(tmp, ".helix"), first)
	require.Equal(t, first, second)
}

func TestEnsureSubdDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmp, "journal"), []byte("x"), 0o600))

	_, err := EnsureSubdDir(tmp, "journal")
	require.Error(t, err, "should fail when a file exists with the same name")
}

func TestHomeSubdDir(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("USERPROFILE", tmp)

	got, err := HomeSubdDir(".helix")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(tmp, ".helix"), got)
}

func TestDetectMimeType(t *testing.T) {
	require.Equal(t, "application/pdf", DetectMimeType("report.PDF", nil))
	require.True(t, strings.HasPrefix(DetectMimeType("notes", []byte("plain words")), "text/plain"))
	require.Equal(t, "application/octet-stream", DetectMimeType("blob", []byte{0x00, 0x01, 0x02}))
}
