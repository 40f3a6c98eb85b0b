package repository

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"path/filepath"
	"strings"

	apperrors "github.com/pixelpruner/pruneriq/internal/errors"
	"github.com/pixelpruner/pruneriq/internal/storage"
	"github.com/pixelpruner/pruneriq/pkg/validation"
)

// imageRepository routes references to local, blob and HTTP storage
type imageRepository struct {
	local     *storage.LocalStorage
	blobs     storage.ImageSource // nil when no Azure account is configured
	fetcher   storage.ImageFetcher
	validator *validation.SourceValidator
}

// NewImageRepository creates a repository. blobs may be nil.
func NewImageRepository(local *storage.LocalStorage, blobs storage.ImageSource, fetcher storage.ImageFetcher, validator *validation.SourceValidator) ImageRepository {
	if validator == nil {
		validator = validation.NewSourceValidator()
	}
	return &imageRepository{
		local:     local,
		blobs:     blobs,
		fetcher:   fetcher,
		validator: validator,
	}
}

// FetchImage loads a single image by URL, blob reference or local path
func (r *imageRepository) FetchImage(ctx context.Context, ref string) (image.Image, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, "", apperrors.NewValidationError("image reference cannot be empty", ErrInvalidImagePath)
	}

	switch {
	case isHTTPRef(ref):
		if err := r.ValidateImageURL(ref); err != nil {
			return nil, "", err
		}
		if r.fetcher == nil {
			return nil, "", apperrors.NewValidationError("remote images are not enabled", ErrSourceUnavailable)
		}
		img, err := r.fetcher.FetchImage(ctx, ref)
		if err != nil {
			return nil, "", classifyFetchError(err)
		}
		return img, ref, nil

	case validation.IsAzureRef(ref):
		dir, name := path.Split(ref)
		if err := checkExtension(name); err != nil {
			return nil, "", err
		}
		source, err := r.Source(dir)
		if err != nil {
			return nil, "", err
		}
		img, err := source.Open(ctx, dir, name)
		return img, name, markNotFound(err, ref)

	default:
		dir, name := filepath.Split(ref)
		if err := checkExtension(name); err != nil {
			return nil, "", err
		}
		if dir == "" {
			dir = "."
		}
		img, err := r.local.Open(ctx, dir, name)
		return img, name, markNotFound(err, ref)
	}
}

// Source returns the storage backend for a folder reference
func (r *imageRepository) Source(folder string) (storage.ImageSource, error) {
	if err := r.ValidateFolder(folder); err != nil {
		return nil, err
	}
	if validation.IsAzureRef(folder) {
		if r.blobs == nil {
			return nil, apperrors.NewValidationError("blob storage is not configured", ErrSourceUnavailable)
		}
		return r.blobs, nil
	}
	return r.local, nil
}

// Remove deletes name from folder when the backend allows it
func (r *imageRepository) Remove(ctx context.Context, folder, name string) error {
	source, err := r.Source(folder)
	if err != nil {
		return err
	}
	remover, ok := source.(storage.Remover)
	if !ok {
		return apperrors.NewForbiddenError("folder does not support deletion", ErrSourceUnavailable)
	}
	return remover.Remove(ctx, folder, name)
}

// ValidateImageURL validates a remote image URL
func (r *imageRepository) ValidateImageURL(imageURL string) error {
	return r.validator.ValidateImageURL(imageURL)
}

// ValidateFolder validates a folder reference
func (r *imageRepository) ValidateFolder(folder string) error {
	return r.validator.ValidateFolder(folder)
}

func classifyFetchError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("image fetch timed out", err)
	case apperrors.IsType(err, apperrors.ErrorTypeDecode):
		return apperrors.NewDecodeError("failed to decode image", err)
	default:
		return apperrors.NewNetworkError("failed to fetch image", err)
	}
}

// markNotFound attaches ErrImageNotFound to not-found errors from a source
func markNotFound(err error, ref string) error {
	if err == nil || !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return err
	}
	return apperrors.NewNotFoundError(fmt.Sprintf("image %q not found", ref), fmt.Errorf("%w: %v", ErrImageNotFound, err))
}

func isHTTPRef(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func checkExtension(name string) error {
	if name == "" {
		return apperrors.NewValidationError("image reference must name a file", ErrInvalidImagePath)
	}
	if !validation.HasSupportedExtension(name) {
		return apperrors.NewValidationError(
			fmt.Sprintf("unsupported extension %q", path.Ext(name)), ErrUnsupportedFormat)
	}
	return nil
}
