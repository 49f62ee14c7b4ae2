// Package archive bundles acquired files into a single download.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// Zip writes files into a new archive at dest. Entries are stored flat under
// their base names; a duplicate base name gets a numeric prefix.
func Zip(dest string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to archive")
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	seen := make(map[string]int)
	for _, path := range files {
		name := filepath.Base(path)
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%d_%s", n, name)
		}
		seen[filepath.Base(path)]++

		if err := addFile(zw, path, name); err != nil {
			zw.Close()
			out.Close()
			os.Remove(dest)
			return err
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Close()
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
