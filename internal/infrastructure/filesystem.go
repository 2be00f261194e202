package infrastructure

import (
	"errors"
	"os"

	"github.com/spf13/afero"
	"github.com/yourusername/httpdl-go/internal/domain"
)

const (
	dirPerm  os.FileMode = 0755
	filePerm os.FileMode = 0644
)

// FileSystem implements domain.FileSystem on top of afero
type FileSystem struct {
	fs afero.Fs
}

// NewFileSystem wraps an afero filesystem
func NewFileSystem(fs afero.Fs) *FileSystem {
	return &FileSystem{fs: fs}
}

// NewOsFileSystem returns a FileSystem backed by the operating system
func NewOsFileSystem() *FileSystem {
	return NewFileSystem(afero.NewOsFs())
}

// MkdirAll creates path and any missing parents
func (f *FileSystem) MkdirAll(path string) error {
	return f.fs.MkdirAll(path, dirPerm)
}

// Exists reports whether path exists
func (f *FileSystem) Exists(path string) (bool, error) {
	return afero.Exists(f.fs, path)
}

// Create opens path for writing and truncates it
func (f *FileSystem) Create(path string) (domain.WritableFile, error) {
	file, err := f.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Remove deletes path. A missing file is not an error.
func (f *FileSystem) Remove(path string) error {
	if err := f.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
