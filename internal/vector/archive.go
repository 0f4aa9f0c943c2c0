package vector

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadZippedShapefile reads the single shapefile inside a ZIP archive, the
// way administrative boundaries are usually distributed.
func ReadZippedShapefile(path string) (*FeatureCollection, error) {
	dir, err := os.MkdirTemp("", "geoquery-shp-*")
	if err != nil {
		return nil, eris.Wrap(err, "vector: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	files, err := extractZIP(path, dir)
	if err != nil {
		return nil, err
	}

	var shp []string
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".shp") {
			shp = append(shp, f)
		}
	}
	if len(shp) != 1 {
		return nil, eris.Errorf("vector: %s holds %d shapefiles, expected 1", path, len(shp))
	}
	return ReadShapefile(shp[0])
}

// extractZIP unpacks every file of a ZIP archive into destDir and returns
// the written paths.
func extractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "vector: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("vector: illegal path %q in archive", f.Name)
	}
	if f.FileInfo().IsDir() {
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "vector: create archive dir")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "vector: open archive entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "vector: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "vector: extract entry")
	}
	return destPath, nil
}
