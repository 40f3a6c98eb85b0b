package repository

import "errors"

var (
	// ErrInvalidImagePath indicates an empty or malformed image reference
	ErrInvalidImagePath = errors.New("invalid image path")

	// ErrImageNotFound indicates the image was not found
	ErrImageNotFound = errors.New("image not found")

	// ErrUnsupportedFormat indicates a file extension the scanner does not decode
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrSourceUnavailable indicates a reference to a backend that is not configured
	ErrSourceUnavailable = errors.New("image source unavailable")
)
