package xyz

import (
	"os"
	"path/filepath"

	"github.com/eak1mov/go-libmap/tile"
	"github.com/spf13/afero"
)

// Writer implements tile.Writer interface for tiles in XYZ format.
type Writer struct {
	fs          afero.Fs
	filePattern string
	style       string
}

// NewWriter creates a new Writer for the given file pattern (e.g. "/home/user/tiles/{z}/{x}/{y}.png").
func NewWriter(filePattern string, opts ...Option) (*Writer, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}
	c := newConfig(opts)
	return &Writer{fs: c.fs, filePattern: filePattern, style: c.style}, nil
}

func (w *Writer) WriteTile(index tile.Index, tileData []byte) error {
	return writeAtomic(w.fs, formatPattern(w.filePattern, index, w.style), tileData)
}

func (w *Writer) Finalize() error {
	return nil
}

// writeAtomic writes data next to filePath and renames it into place, so that
// concurrent readers never observe a partially written tile.
func writeAtomic(fs afero.Fs, filePath string, data []byte) (err error) {
	dirPath := filepath.Dir(filePath)
	if err := fs.MkdirAll(dirPath, 0755); err != nil {
		return err
	}

	tmp, err := afero.TempFile(fs, dirPath, ".tile-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			fs.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = fs.Chmod(tmp.Name(), 0644); err != nil && !os.IsNotExist(err) {
		return err
	}
	return fs.Rename(tmp.Name(), filePath)
}
