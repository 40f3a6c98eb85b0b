package analyzer

import (
	"context"
	"image"

	"github.com/pixelpruner/pruneriq/internal/storage"
	"github.com/pixelpruner/pruneriq/pkg/models"
)

// ImageAnalyzer scores single images and whole folders
type ImageAnalyzer interface {
	// Analyze scores one decoded image with default options
	Analyze(img image.Image, filename string) ImageResult

	// AnalyzeWithOptions scores one decoded image against the given thresholds
	AnalyzeWithOptions(img image.Image, filename string, options AnalysisOptions) ImageResult

	// ScanFolder scores every candidate image in dir
	ScanFolder(ctx context.Context, source storage.ImageSource, dir string, options AnalysisOptions, progress ProgressFunc) (*models.ScanReport, error)

	// Lifecycle management
	Close() error
}

// MetricsCalculator handles image metrics computation
type MetricsCalculator interface {
	CalculateMetrics(img image.Image) Metrics
	CalculateContrast(img *image.NRGBA) float64
	CalculateLaplacianVariance(gray *image.Gray) float64
	CalculateNoise(gray *image.Gray) float64
	ToGray(img *image.NRGBA) *image.Gray
}

// ProgressFunc is called after each candidate with a 1-based index and the total
type ProgressFunc func(index, total int)
