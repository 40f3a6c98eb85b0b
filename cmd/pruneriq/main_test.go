package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pixelpruner/pruneriq/pkg/models"
)

func writeCrops(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	sharp := image.NewGray(image.Rect(0, 0, 12, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			if (x+y)%2 == 0 {
				sharp.SetGray(x, y, color.Gray{255})
			}
		}
	}
	flat := image.NewGray(image.Rect(0, 0, 12, 12))
	for i := range flat.Pix {
		flat.Pix[i] = 100
	}

	for name, img := range map[string]image.Image{
		"cropped_sharp.png": sharp,
		"cropped_flat.png":  flat,
		"source.png":        sharp,
	} {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Table(t *testing.T) {
	dir := writeCrops(t)

	code, out, errOut := runCLI(t, "-dir", dir, "-sort", "rating", "-desc")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}

	sharpAt := strings.Index(out, "cropped_sharp.png")
	flatAt := strings.Index(out, "cropped_flat.png")
	if sharpAt < 0 || flatAt < 0 || sharpAt > flatAt {
		t.Errorf("expected sharp crop listed before flat crop:\n%s", out)
	}
	if strings.Contains(out, "source.png") {
		t.Error("source.png should be excluded in crops-only mode")
	}
	for _, want := range []string{"127.50 (100%)", "Excellent", "low contrast, low clarity", "Images:   2"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q:\n%s", want, out)
		}
	}
	if !strings.Contains(errOut, "Analysing 2/2") {
		t.Errorf("expected progress on stderr, got %q", errOut)
	}
}

func TestRun_JSONWithFilter(t *testing.T) {
	dir := writeCrops(t)

	code, out, errOut := runCLI(t, "-json", "-crops-only=false", "-min-contrast", "50", "-max-noise", "oops", dir)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}

	var resp models.ScanResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(resp.Results) != 2 {
		t.Errorf("expected the two sharp images, got %+v", resp.Results)
	}
	if !strings.Contains(errOut, "ignoring -max-noise") {
		t.Errorf("expected a warning for the bad bound, got %q", errOut)
	}
}

func TestRun_DeleteFiltered(t *testing.T) {
	dir := writeCrops(t)

	code, _, errOut := runCLI(t, "-dir", dir, "-rating", "fair", "-delete-filtered")
	if code != 1 || !strings.Contains(errOut, "safe mode") {
		t.Errorf("expected safe mode refusal, got exit %d: %s", code, errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, "cropped_flat.png")); err != nil {
		t.Fatal("safe mode must keep files")
	}

	code, out, errOut := runCLI(t, "-dir", dir, "-rating", "fair", "-delete-filtered", "-safe-mode=false")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "deleted cropped_flat.png") {
		t.Errorf("expected deletion report, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "cropped_sharp.png")); err != nil {
		t.Error("unfiltered files must be kept")
	}
}

func TestRun_UsageErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		code int
	}{
		{"no folder", nil, 2},
		{"bad rating", []string{"-dir", ".", "-rating", "great"}, 2},
		{"negative threshold", []string{"-dir", ".", "-noise-threshold", "-1"}, 2},
		{"unknown flag", []string{"-frobnicate"}, 2},
		{"missing folder", []string{"-dir", "/definitely/not/here"}, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, tc.args...); code != tc.code {
				t.Errorf("expected exit %d, got %d", tc.code, code)
			}
		})
	}
}

func TestRun_IgnoresServerSettings(t *testing.T) {
	t.Setenv("PORT", "70000")
	t.Setenv("REQUEST_TIMEOUT", "-1s")
	t.Setenv("AZURE_STORAGE_ACCOUNT", "account")

	dir := writeCrops(t)
	if code, _, errOut := runCLI(t, "-dir", dir); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
}
