package report

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Bundle zips files (stored by base name) into zipPath. With remove set the
// originals are deleted once the archive is complete.
func Bundle(zipPath string, files []string, remove bool) error {
	if len(files) == 0 {
		return fmt.Errorf("bundle %s: no files", zipPath)
	}
	if err := os.MkdirAll(filepath.Dir(zipPath), 0755); err != nil {
		return err
	}
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	for _, name := range files {
		if err := addToZip(zw, name); err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("bundle %s: %w", zipPath, err)
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if remove {
		for _, name := range files {
			if err := os.Remove(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func addToZip(zw *zip.Writer, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.Create(filepath.Base(name))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
