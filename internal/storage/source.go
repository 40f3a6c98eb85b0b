package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	apperrors "github.com/pixelpruner/pruneriq/internal/errors"
)

// ImageSource lists and opens images inside a folder-like location
type ImageSource interface {
	// List returns the file names directly inside dir, in listing order
	List(ctx context.Context, dir string) ([]string, error)

	// Open decodes a single listed file
	Open(ctx context.Context, dir, name string) (image.Image, error)
}

// Remover deletes files from a source that supports it
type Remover interface {
	Remove(ctx context.Context, dir, name string) error
}

// ImageFetcher retrieves a single remote image
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (image.Image, error)
}

// maxImagePixels bounds width*height of any image we agree to decode.
var maxImagePixels = 100_000_000

// DecodeImage decodes png, jpeg and webp data and applies the EXIF
// orientation tag. The header is checked first so an oversized image is
// rejected before its pixels are allocated.
func DecodeImage(r io.Reader) (image.Image, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, apperrors.NewDecodeError("failed to decode image", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > int64(maxImagePixels) {
		return nil, apperrors.NewDecodeError("image too large", nil).
			WithDetails(fmt.Sprintf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxImagePixels))
	}

	img, err := imaging.Decode(io.MultiReader(&header, r), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewDecodeError("failed to decode image", err)
	}
	return img, nil
}
