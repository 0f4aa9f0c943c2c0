package vector

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zipFiles writes an archive at path holding the named entries.
func zipFiles(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, src := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		data, err := os.ReadFile(src)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func shapefileParts(dir string) map[string]string {
	parts := make(map[string]string)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		parts["gadm/gujarat"+ext] = filepath.Join(dir, "gujarat"+ext)
	}
	return parts
}

func TestReadZippedShapefile(t *testing.T) {
	src := t.TempDir()
	writeTestShapefile(t, src, "")

	archive := filepath.Join(t.TempDir(), "gujarat.zip")
	zipFiles(t, archive, shapefileParts(src))

	fc, err := ReadFile(archive)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Gujarat", fc.Features[0].Properties["NAME"])
}

func TestReadZippedShapefileRejectsAmbiguousArchive(t *testing.T) {
	src := t.TempDir()
	writeTestShapefile(t, src, "")

	parts := shapefileParts(src)
	parts["other.shp"] = filepath.Join(src, "gujarat.shp")
	archive := filepath.Join(t.TempDir(), "two.zip")
	zipFiles(t, archive, parts)

	_, err := ReadZippedShapefile(archive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds 2 shapefiles")
}

func TestExtractZIPRejectsEscapingPaths(t *testing.T) {
	src := filepath.Join(t.TempDir(), "x.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	archive := filepath.Join(t.TempDir(), "slip.zip")
	zipFiles(t, archive, map[string]string{"../../escape.txt": src})

	_, err := extractZIP(archive, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal path")
}
