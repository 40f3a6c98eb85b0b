package analyzer

import (
	"github.com/pixelpruner/pruneriq/pkg/validation"
)

// AnalysisOptions configures single-image and folder analysis
type AnalysisOptions struct {
	// Quality thresholds
	Thresholds validation.Thresholds

	// Folder scan
	CropsOnly bool

	// Performance options
	// Workers above 1 analyses folder images concurrently; results keep listing order.
	Workers int
}

// DefaultOptions returns default analysis options
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		Thresholds: validation.DefaultThresholds(),
		CropsOnly:  true,
		Workers:    1,
	}
}

// WithThresholds replaces all three thresholds
func (opts AnalysisOptions) WithThresholds(thresholds validation.Thresholds) AnalysisOptions {
	opts.Thresholds = thresholds
	return opts
}

// WithCustomThresholds allows setting individual quality thresholds
func (opts AnalysisOptions) WithCustomThresholds(contrast, clarity, noise float64) AnalysisOptions {
	opts.Thresholds = validation.Thresholds{
		Contrast: contrast,
		Clarity:  clarity,
		Noise:    noise,
	}
	return opts
}

// WithAllImages disables the cropped_ prefix filter
func (opts AnalysisOptions) WithAllImages() AnalysisOptions {
	opts.CropsOnly = false
	return opts
}

// WithCropsOnly sets the cropped_ prefix filter
func (opts AnalysisOptions) WithCropsOnly(cropsOnly bool) AnalysisOptions {
	opts.CropsOnly = cropsOnly
	return opts
}

// WithWorkers sets scan concurrency; values below 1 mean sequential
func (opts AnalysisOptions) WithWorkers(workers int) AnalysisOptions {
	if workers < 1 {
		workers = 1
	}
	opts.Workers = workers
	return opts
}
