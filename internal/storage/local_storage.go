package storage

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "github.com/pixelpruner/pruneriq/internal/errors"
)

// LocalStorage reads images from the local filesystem
type LocalStorage struct{}

// NewLocalStorage creates a filesystem-backed source
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

// List returns regular file names in dir sorted by name. Sub-directories are skipped.
func (s *LocalStorage) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("folder not found", err)
		}
		return nil, apperrors.NewValidationError("cannot read folder", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Open decodes dir/name
func (s *LocalStorage) Open(ctx context.Context, dir, name string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("image not found", err)
		}
		return nil, apperrors.NewProcessingError("cannot open image", err)
	}
	defer f.Close()

	return DecodeImage(f)
}

// Remove deletes dir/name; a file that is already gone is not an error
func (s *LocalStorage) Remove(ctx context.Context, dir, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name != filepath.Base(name) {
		return apperrors.NewValidationError("file name must not contain a path", nil)
	}

	err := os.Remove(filepath.Join(dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.NewProcessingError("cannot delete image", err)
	}
	return nil
}
