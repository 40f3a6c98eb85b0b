package validation

import (
	"net/url"
	"path"
	"strings"

	apperrors "github.com/pixelpruner/pruneriq/internal/errors"
)

// CropPrefix marks files written by the cropper
const CropPrefix = "cropped_"

// AzureScheme prefixes blob-container folder references (az://container/prefix)
const AzureScheme = "az"

// SupportedExtensions are the raster formats the scanner picks up
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// SourceValidator validates image and folder references
type SourceValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewSourceValidator creates a validator accepting http(s) URLs from any host
func NewSourceValidator() *SourceValidator {
	return &SourceValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewSourceValidatorWithHosts restricts remote images to the given hosts
func NewSourceValidatorWithHosts(hosts []string) *SourceValidator {
	v := NewSourceValidator()
	v.allowedHosts = hosts
	return v
}

// ValidateImageURL validates a remote single-image URL
func (v *SourceValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !contains(v.allowedSchemes, parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if len(v.allowedHosts) > 0 && !contains(v.allowedHosts, parsedURL.Host) {
		return apperrors.NewValidationError("URL host not allowed", nil).WithDetails(parsedURL.Host)
	}

	return nil
}

// ValidateFolder checks a folder reference: a local path or az://container[/prefix]
func (v *SourceValidator) ValidateFolder(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return apperrors.NewValidationError("folder cannot be empty", nil)
	}
	if !IsAzureRef(ref) {
		return nil
	}
	container, _, err := ParseAzureRef(ref)
	if err != nil {
		return err
	}
	if container == "" {
		return apperrors.NewValidationError("blob folder must name a container", nil)
	}
	return nil
}

// IsAzureRef reports whether ref points at a blob container
func IsAzureRef(ref string) bool {
	return strings.HasPrefix(ref, AzureScheme+"://")
}

// ParseAzureRef splits az://container/some/prefix into container and prefix.
// A non-empty prefix always ends in a slash.
func ParseAzureRef(ref string) (container, prefix string, err error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != AzureScheme {
		return "", "", apperrors.NewValidationError("invalid blob folder reference", err)
	}
	container = u.Host
	prefix = strings.Trim(u.Path, "/")
	if prefix != "" {
		prefix += "/"
	}
	return container, prefix, nil
}

// HasSupportedExtension matches the extension case-insensitively
func HasSupportedExtension(name string) bool {
	return contains(SupportedExtensions, strings.ToLower(path.Ext(name)))
}

// IsCandidate reports whether a listed file should be analysed
func IsCandidate(name string, cropsOnly bool) bool {
	if cropsOnly && !strings.HasPrefix(strings.ToLower(name), CropPrefix) {
		return false
	}
	return HasSupportedExtension(name)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
