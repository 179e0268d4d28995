package miscutils

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store is a single slot of bytes. ReadBytes on a slot that was never
// written returns nil bytes and a nil error, or an error wrapping
// fs.ErrNotExist; both read as empty.
type Store interface {
	ReadBytes(ctx context.Context) ([]byte, error)
	WriteBytes(ctx context.Context, data []byte) error
}

// FileStore keeps the slot in a local file. Writes go to a temporary file in
// the same directory that is renamed over the target, so readers never see a
// partial write.
type FileStore struct {
	path string
	perm fs.FileMode
}

// NewFileStore returns a store for path. Files are created with mode 0600.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, perm: 0o600}
}

// Path returns the file the store reads and writes.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) ReadBytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, newStorageError("read "+f.path, err)
	}
	return data, nil
}

func (f *FileStore) WriteBytes(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return newStorageError("create directory "+dir, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(f.path), uuid.NewString()))
	if err := writeFileSync(tmp, data, f.perm); err != nil {
		os.Remove(tmp)
		return newStorageError("write "+tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return newStorageError("replace "+f.path, err)
	}
	return nil
}

// Remove deletes the file. Removing a missing file is not an error.
func (f *FileStore) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return newStorageError("remove "+f.path, err)
	}
	return nil
}

func writeFileSync(name string, data []byte, perm fs.FileMode) error {
	file, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
