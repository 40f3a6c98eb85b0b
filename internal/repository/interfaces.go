package repository

import (
	"context"
	"image"

	"github.com/pixelpruner/pruneriq/internal/storage"
)

// ImageRepository resolves image and folder references onto storage backends.
// References are local paths, az://container/prefix blob folders, or
// http(s) URLs for single images.
type ImageRepository interface {
	// FetchImage loads one image and returns it with its display name
	FetchImage(ctx context.Context, ref string) (image.Image, string, error)

	// Source returns the backend that serves the folder reference
	Source(folder string) (storage.ImageSource, error)

	// Remove deletes one file from a folder; only writable backends support it
	Remove(ctx context.Context, folder, name string) error

	// ValidateImageURL validates a remote image URL
	ValidateImageURL(imageURL string) error

	// ValidateFolder validates a folder reference
	ValidateFolder(folder string) error
}
