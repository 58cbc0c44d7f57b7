package gtfs

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractZip extracts every entry of a zip archive into the archive's own
// directory and returns the extracted file paths.
func extractZip(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer zr.Close() // nolint

	destDir := filepath.Dir(path)

	var outputs []string
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		out, err := extractEntry(entry, destDir)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func extractEntry(entry *zip.File, destDir string) (string, error) {
	out := filepath.Join(destDir, entry.Name) // nolint:gosec // validated below
	if !strings.HasPrefix(out, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("zip entry %q escapes extraction directory", entry.Name)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}

	src, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("opening zip entry %q: %w", entry.Name, err)
	}
	defer src.Close() // nolint

	dst, err := os.Create(out)
	if err != nil {
		return "", err
	}
	defer dst.Close() // nolint

	if _, err := io.Copy(dst, src); err != nil { // nolint:gosec
		return "", fmt.Errorf("extracting zip entry %q: %w", entry.Name, err)
	}
	return out, nil
}

// extractAll extracts a dataset archive and then any nested zip entries one
// level deep. Some distributors publish per-mode sub-archives inside the
// main bundle.
func extractAll(path string) ([]string, error) {
	first, err := extractZip(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, f := range first {
		if strings.EqualFold(filepath.Ext(f), ".zip") {
			nested, err := extractZip(f)
			if err != nil {
				return nil, err
			}
			files = append(files, nested...)
			continue
		}
		files = append(files, f)
	}
	return files, nil
}
