package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandMatchesRecursivelyAndDeduplicates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "nested/b.md", "nested/deeper/c.txt", "skip.pdfx"} {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("essay"), 0o644))
	}

	root := filepath.ToSlash(dir)
	files, err := expand([]string{root + "/**/*.{txt,md}", root + "/a.txt"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "nested", "b.md"),
		filepath.Join(dir, "nested", "deeper", "c.txt"),
	}, files)
}

func TestReadOptional(t *testing.T) {
	got, err := readOptional("")
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = readOptional(filepath.Join(t.TempDir(), "missing.md"))
	require.Error(t, err)
}
