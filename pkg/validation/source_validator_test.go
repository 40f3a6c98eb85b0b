package validation

import (
	"errors"
	"testing"

	apperrors "github.com/pixelpruner/pruneriq/internal/errors"
)

func TestValidateImageURL_ValidURLs(t *testing.T) {
	validator := NewSourceValidator()

	validURLs := []string{
		"http://example.com/image.jpg",
		"https://example.com/image.png",
		"https://subdomain.example.com/path/to/image.webp",
		"http://192.168.1.1/image.jpg",
	}

	for _, u := range validURLs {
		if err := validator.ValidateImageURL(u); err != nil {
			t.Errorf("Expected valid URL %s to pass validation, got error: %v", u, err)
		}
	}
}

func TestValidateImageURL_Rejected(t *testing.T) {
	validator := NewSourceValidator()

	testCases := []struct {
		url     string
		message string
	}{
		{"", "URL cannot be empty"},
		{"   ", "URL cannot be empty"},
		{"not-a-url", "URL scheme not allowed"},
		{"ftp://example.com/image.jpg", "URL scheme not allowed"},
		{"file://local/path/image.jpg", "URL scheme not allowed"},
		{"http://", "URL must have a valid host"},
		{"http:///path", "URL must have a valid host"},
	}

	for _, tc := range testCases {
		err := validator.ValidateImageURL(tc.url)
		if err == nil {
			t.Errorf("Expected %q to fail validation", tc.url)
			continue
		}
		appErr, ok := err.(*apperrors.AppError)
		if !ok {
			t.Errorf("Expected AppError for %q, got: %T", tc.url, err)
			continue
		}
		if appErr.Message != tc.message {
			t.Errorf("Expected %q for %q, got %q", tc.message, tc.url, appErr.Message)
		}
	}
}

func TestValidateImageURL_RestrictedHosts(t *testing.T) {
	validator := NewSourceValidatorWithHosts([]string{"example.com", "trusted.com"})

	if err := validator.ValidateImageURL("https://trusted.com/a.png"); err != nil {
		t.Errorf("Expected allowed host to pass, got %v", err)
	}
	err := validator.ValidateImageURL("http://malicious.com/a.png")
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for disallowed host, got %v", err)
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Details != "malicious.com" {
		t.Errorf("Expected the rejected host in details, got %+v", appErr)
	}
}

func TestValidateFolder(t *testing.T) {
	validator := NewSourceValidator()

	valid := []string{"/data/crops", "relative/dir", "az://datasets", "az://datasets/run1/crops"}
	for _, ref := range valid {
		if err := validator.ValidateFolder(ref); err != nil {
			t.Errorf("Expected %q to be valid, got %v", ref, err)
		}
	}

	invalid := []string{"", "  ", "az://"}
	for _, ref := range invalid {
		if err := validator.ValidateFolder(ref); err == nil {
			t.Errorf("Expected %q to be rejected", ref)
		}
	}
}

func TestParseAzureRef(t *testing.T) {
	testCases := []struct {
		ref       string
		container string
		prefix    string
	}{
		{"az://datasets", "datasets", ""},
		{"az://datasets/", "datasets", ""},
		{"az://datasets/run1/crops", "datasets", "run1/crops/"},
		{"az://datasets/run1/", "datasets", "run1/"},
	}

	for _, tc := range testCases {
		container, prefix, err := ParseAzureRef(tc.ref)
		if err != nil {
			t.Fatalf("ParseAzureRef(%q) failed: %v", tc.ref, err)
		}
		if container != tc.container || prefix != tc.prefix {
			t.Errorf("ParseAzureRef(%q) = (%q, %q), want (%q, %q)", tc.ref, container, prefix, tc.container, tc.prefix)
		}
	}

	if _, _, err := ParseAzureRef("/local/dir"); err == nil {
		t.Error("Expected non-az reference to fail")
	}
}

func TestIsCandidate(t *testing.T) {
	testCases := []struct {
		name      string
		cropsOnly bool
		want      bool
	}{
		{"a.png", false, true},
		{"a.png", true, false},
		{"cropped_a.png", true, true},
		{"Cropped_1_photo.JPG", true, true},
		{"photo.jpeg", false, true},
		{"photo.webp", false, true},
		{"photo.gif", false, false},
		{"cropped_notes.txt", true, false},
		{"noextension", false, false},
	}

	for _, tc := range testCases {
		if got := IsCandidate(tc.name, tc.cropsOnly); got != tc.want {
			t.Errorf("IsCandidate(%q, %v) = %v, want %v", tc.name, tc.cropsOnly, got, tc.want)
		}
	}
}
