// Package archive builds the zip files uploaded by the FTPES action.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Ignored lists base-name patterns that are never added to an archive.
var Ignored = []string{"*.git", "*.svn", "*.DS_Store"}

// ErrExists is returned when the destination zip is already present.
var ErrExists = errors.New("file already exists")

// ExistsError names the zip that blocked the run.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("File \"%s\" already exists!", e.Path)
}

func (e *ExistsError) Unwrap() error { return ErrExists }

func ignored(name string) bool {
	for _, pattern := range Ignored {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Zip writes every item into a new zip at dest. Each item is stored relative
// to its own parent folder, so directories keep their name as the top-level
// entry. A partial archive is removed on failure.
func Zip(dest string, items []string) (err error) {
	if len(items) == 0 {
		return errors.New("nothing to zip")
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &ExistsError{Path: dest}
		}
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer func() {
		if err != nil {
			os.Remove(dest)
		}
	}()

	zw := zip.NewWriter(f)
	for _, item := range items {
		if err = addItem(zw, item); err != nil {
			zw.Close()
			f.Close()
			return err
		}
	}
	if err = zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finishing %s: %w", dest, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dest, err)
	}
	return nil
}

func addItem(zw *zip.Writer, item string) error {
	item = filepath.Clean(item)
	parent := filepath.Dir(item)

	return filepath.WalkDir(item, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("header for %s: %w", path, err)
		}
		hdr.Name = name

		if d.IsDir() {
			hdr.Name += "/"
			_, err := zw.CreateHeader(hdr)
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("adding %s: %w", name, err)
		}
		src, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer src.Close()
		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("compressing %s: %w", name, err)
		}
		return nil
	})
}
