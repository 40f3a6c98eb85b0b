package analyzer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	apperrors "github.com/pixelpruner/pruneriq/internal/errors"
	"github.com/pixelpruner/pruneriq/internal/observer"
	"github.com/pixelpruner/pruneriq/internal/storage"
	"github.com/pixelpruner/pruneriq/pkg/models"
)

// memorySource serves pre-built images; names without an image fail to decode
type memorySource struct {
	names  []string
	images map[string]image.Image
	onOpen func(name string)
}

func (s *memorySource) List(ctx context.Context, dir string) ([]string, error) {
	return s.names, nil
}

func (s *memorySource) Open(ctx context.Context, dir, name string) (image.Image, error) {
	if s.onOpen != nil {
		s.onOpen(name)
	}
	img, ok := s.images[name]
	if !ok {
		return nil, apperrors.NewDecodeError("failed to decode image", errors.New("unknown format"))
	}
	return img, nil
}

func newTestAnalyzer(t *testing.T) ImageAnalyzer {
	t.Helper()
	analyzer, err := NewImageAnalyzer(nil)
	if err != nil {
		t.Fatalf("Failed to create image analyzer: %v", err)
	}
	t.Cleanup(func() { analyzer.Close() })
	return analyzer
}

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	var err error
	if filepath.Ext(path) == ".png" {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	}
	if err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyze_UniformImageIsFair(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	result := analyzer.Analyze(createTestImage(32, 32, color.RGBA{128, 128, 128, 255}), "cropped_grey.png")

	if result.Filename != "cropped_grey.png" {
		t.Errorf("Unexpected filename %q", result.Filename)
	}
	if result.Rating != models.RatingFair {
		t.Errorf("Expected Fair, got %s", result.Rating)
	}
	if result.Reason != "low contrast, low clarity" {
		t.Errorf("Unexpected reason %q", result.Reason)
	}
	if result.ContrastPct != 0 || result.ClarityPct != 0 || result.NoisePct != 100 {
		t.Errorf("Unexpected scores %+v", result)
	}
}

func TestAnalyzeWithOptions_Thresholds(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	img := createSplitImage(64, 64)

	strict := analyzer.Analyze(img, "split.png")
	lenient := analyzer.AnalyzeWithOptions(img, "split.png", DefaultOptions().WithCustomThresholds(100, 1, 1e9))

	if strict.Contrast != lenient.Contrast || strict.Clarity != lenient.Clarity || strict.Noise != lenient.Noise {
		t.Error("Expected raw metrics not to depend on thresholds")
	}
	if lenient.Rating != models.RatingExcellent || lenient.Reason != "meets all thresholds" {
		t.Errorf("Expected Excellent with lenient thresholds, got %s (%s)", lenient.Rating, lenient.Reason)
	}
	if lenient.ContrastPct != 100 {
		t.Errorf("Expected contrast to saturate at 100, got %f", lenient.ContrastPct)
	}
}

func TestScanFolder_CropsOnly(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), createSplitImage(16, 16))
	writeImage(t, filepath.Join(dir, "cropped_a.png"), createSplitImage(16, 16))
	writeImage(t, filepath.Join(dir, "CROPPED_b.jpg"), createTestImage(16, 16, color.RGBA{90, 90, 90, 255}))
	if err := os.WriteFile(filepath.Join(dir, "cropped_notes.txt"), []byte("skip me"), 0o644); err != nil {
		t.Fatal(err)
	}

	analyzer := newTestAnalyzer(t)
	report, err := analyzer.ScanFolder(context.Background(), storage.NewLocalStorage(), dir, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("ScanFolder failed: %v", err)
	}

	var names []string
	for _, r := range report.Results {
		names = append(names, r.Filename)
	}
	want := []string{"CROPPED_b.jpg", "cropped_a.png"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Expected %v, got %v", want, names)
	}

	all, err := analyzer.ScanFolder(context.Background(), storage.NewLocalStorage(), dir, DefaultOptions().WithAllImages(), nil)
	if err != nil {
		t.Fatalf("ScanFolder failed: %v", err)
	}
	if len(all.Results) != 3 {
		t.Errorf("Expected 3 results without the prefix filter, got %d", len(all.Results))
	}
}

func TestScanFolder_EmptyFolder(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	calls := 0

	report, err := analyzer.ScanFolder(context.Background(), storage.NewLocalStorage(), t.TempDir(), DefaultOptions(), func(int, int) { calls++ })
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if report.Results == nil || len(report.Results) != 0 {
		t.Errorf("Expected an empty, non-nil result list, got %#v", report.Results)
	}
	if calls != 0 {
		t.Errorf("Expected no progress callbacks, got %d", calls)
	}
}

func TestScanFolder_MissingFolder(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	_, err := analyzer.ScanFolder(context.Background(), storage.NewLocalStorage(), filepath.Join(t.TempDir(), "nope"), DefaultOptions(), nil)
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestScanFolder_SkipsUndecodable(t *testing.T) {
	src := &memorySource{
		names: []string{"cropped_1.png", "cropped_broken.png", "cropped_3.png"},
		images: map[string]image.Image{
			"cropped_1.png": createSplitImage(8, 8),
			"cropped_3.png": createTestImage(8, 8, color.RGBA{10, 10, 10, 255}),
		},
	}

	var progress [][2]int
	report, err := newTestAnalyzer(t).ScanFolder(context.Background(), src, "mem", DefaultOptions(), func(i, n int) {
		progress = append(progress, [2]int{i, n})
	})
	if err != nil {
		t.Fatalf("ScanFolder failed: %v", err)
	}

	if len(report.Results) != 2 || report.Results[0].Filename != "cropped_1.png" || report.Results[1].Filename != "cropped_3.png" {
		t.Errorf("Unexpected results %+v", report.Results)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Filename != "cropped_broken.png" {
		t.Errorf("Expected cropped_broken.png to be skipped, got %+v", report.Skipped)
	}
	want := [][2]int{{1, 3}, {2, 3}, {3, 3}}
	if !reflect.DeepEqual(progress, want) {
		t.Errorf("Expected progress %v, got %v", want, progress)
	}
}

func TestScanFolder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	img := createSplitImage(8, 8)
	src := &memorySource{
		names:  []string{"cropped_1.png", "cropped_2.png", "cropped_3.png", "cropped_4.png"},
		images: map[string]image.Image{"cropped_1.png": img, "cropped_2.png": img, "cropped_3.png": img, "cropped_4.png": img},
		onOpen: func(name string) {
			if name == "cropped_2.png" {
				cancel()
			}
		},
	}

	report, err := newTestAnalyzer(t).ScanFolder(ctx, src, "mem", DefaultOptions(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if report == nil || len(report.Results) != 2 {
		t.Fatalf("Expected the two results finished before cancellation, got %+v", report)
	}
}

// interruptedSource cancels the scan when asked for its second file and
// reports that open as interrupted
type interruptedSource struct {
	cancel context.CancelFunc
	opened int
}

func (s *interruptedSource) List(ctx context.Context, dir string) ([]string, error) {
	return []string{"cropped_1.png", "cropped_2.png", "cropped_3.png"}, nil
}

func (s *interruptedSource) Open(ctx context.Context, dir, name string) (image.Image, error) {
	s.opened++
	if s.opened == 2 {
		s.cancel()
		return nil, ctx.Err()
	}
	return createSplitImage(8, 8), nil
}

func TestScanFolder_CancelledOpenIsNotReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var progress [][2]int
	src := &interruptedSource{cancel: cancel}
	report, err := newTestAnalyzer(t).ScanFolder(ctx, src, "mem", DefaultOptions(), func(i, n int) {
		progress = append(progress, [2]int{i, n})
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(report.Results) != 1 || len(report.Skipped) != 0 {
		t.Errorf("Expected one result and nothing skipped, got %+v", report)
	}
	want := [][2]int{{1, 3}}
	if !reflect.DeepEqual(progress, want) {
		t.Errorf("Expected progress %v, got %v", want, progress)
	}
}

func TestPoolSize(t *testing.T) {
	testCases := []struct {
		workers, candidates, want int
	}{
		{4, 10, 4},
		{500000, 3, 3},
		{2, 2, 2},
	}
	for _, tc := range testCases {
		if got := poolSize(tc.workers, tc.candidates); got != tc.want {
			t.Errorf("poolSize(%d, %d) = %d, want %d", tc.workers, tc.candidates, got, tc.want)
		}
	}
}

func TestScanFolder_ParallelKeepsOrder(t *testing.T) {
	names := make([]string, 12)
	images := make(map[string]image.Image, len(names))
	for i := range names {
		names[i] = "cropped_" + string(rune('a'+i)) + ".png"
		images[names[i]] = createNoiseImage(24, 24, int64(i))
	}
	src := &memorySource{
		names:  names,
		images: images,
		onOpen: func(name string) {
			// Earlier files finish later.
			time.Sleep(time.Duration('z'-name[len("cropped_")]) * time.Millisecond)
		},
	}

	analyzer := newTestAnalyzer(t)

	var mu sync.Mutex
	var counts []int
	parallel, err := analyzer.ScanFolder(context.Background(), src, "mem", DefaultOptions().WithWorkers(4), func(i, n int) {
		mu.Lock()
		counts = append(counts, i)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Parallel scan failed: %v", err)
	}

	sequential, err := analyzer.ScanFolder(context.Background(), src, "mem", DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Sequential scan failed: %v", err)
	}

	if !reflect.DeepEqual(parallel.Results, sequential.Results) {
		t.Error("Expected parallel and sequential scans to produce identical, ordered results")
	}
	for i, c := range counts {
		if c != i+1 {
			t.Fatalf("Expected progress counts 1..%d, got %v", len(names), counts)
		}
	}
	if len(counts) != len(names) {
		t.Errorf("Expected %d progress calls, got %d", len(names), len(counts))
	}
}

func TestScanFolder_PublishesEvents(t *testing.T) {
	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(metrics)

	analyzer, err := NewImageAnalyzer(publisher)
	if err != nil {
		t.Fatal(err)
	}
	defer analyzer.Close()

	src := &memorySource{
		names:  []string{"cropped_ok.png", "cropped_bad.png"},
		images: map[string]image.Image{"cropped_ok.png": createSplitImage(8, 8)},
	}
	if _, err := analyzer.ScanFolder(context.Background(), src, "mem", DefaultOptions(), nil); err != nil {
		t.Fatal(err)
	}

	stats := metrics.GetStats()
	if stats.Scans != 1 || stats.ImagesAnalyzed != 1 || stats.ImagesSkipped != 1 {
		t.Errorf("Unexpected event counters %+v", stats)
	}
}

func TestScanFolder_RecoversFromPanic(t *testing.T) {
	img := createSplitImage(8, 8)
	src := &memorySource{
		names:  []string{"cropped_1.png", "cropped_2.png", "cropped_3.png"},
		images: map[string]image.Image{"cropped_1.png": img, "cropped_2.png": img, "cropped_3.png": img},
		onOpen: func(name string) {
			if name == "cropped_2.png" {
				panic("corrupt header")
			}
		},
	}

	for _, workers := range []int{1, 2} {
		report, err := newTestAnalyzer(t).ScanFolder(context.Background(), src, "mem", DefaultOptions().WithWorkers(workers), nil)
		if err != nil {
			t.Fatalf("workers=%d: ScanFolder failed: %v", workers, err)
		}
		if len(report.Results) != 2 {
			t.Errorf("workers=%d: expected 2 results, got %+v", workers, report.Results)
		}
		if len(report.Skipped) != 1 || report.Skipped[0].Filename != "cropped_2.png" {
			t.Errorf("workers=%d: expected cropped_2.png to be skipped, got %+v", workers, report.Skipped)
		}
	}
}
